package handler

import (
	"context"
	"net/http"

	"dark_api/internal/api/middleware"
	"dark_api/internal/common"
	"dark_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type UserResolver interface {
	ResolveUser(ctx context.Context, name string) (*model.User, error)
}

type UserHandler struct {
	users UserResolver
}

func NewUserHandler(users UserResolver) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/me", h.me) // GET /api/v1/users/me
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := h.users.ResolveUser(r.Context(), p.Name)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
