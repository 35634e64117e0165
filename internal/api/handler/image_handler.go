package handler

import (
	"bufio"
	"context"
	"io"
	"log"
	"net/http"

	"dark_api/internal/api/middleware"
	"dark_api/internal/common"

	"github.com/go-chi/chi/v5"
)

type ImageSource interface {
	DownloadImage(ctx context.Context, ref string) (io.ReadCloser, error)
}

type ImageHandler struct {
	images ImageSource
}

func NewImageHandler(images ImageSource) *ImageHandler {
	return &ImageHandler{images: images}
}

func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/{ref}", h.download) // GET /api/v1/images/{ref}
}

func (h *ImageHandler) download(w http.ResponseWriter, r *http.Request) {
	rc, err := h.images.DownloadImage(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	head, _ := br.Peek(512)
	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, br); err != nil {
		log.Printf("ERROR: Failed to stream image %s: %v", chi.URLParam(r, "ref"), err)
	}
}
