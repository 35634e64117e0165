package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"dark_api/internal/api/middleware"
	"dark_api/internal/app/service"
	"dark_api/internal/common"
	"dark_api/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// TaskOperations is the slice of service.TaskService the HTTP layer needs.
type TaskOperations interface {
	ListAvailable(ctx context.Context, p model.Principal, page model.Page) ([]model.TaskView, error)
	GetOne(ctx context.Context, p model.Principal, id string) (*model.TaskView, error)
	Mark(ctx context.Context, p model.Principal, id string, isAllowed bool) (bool, error)
	UploadImage(ctx context.Context, p model.Principal, id, filename string, data []byte) (string, error)
	Add(ctx context.Context, p model.Principal, req service.CreateTaskRequest) (string, error)
	Solve(ctx context.Context, p model.Principal, id, answer string) (bool, error)
}

type TaskHandler struct {
	taskService   TaskOperations
	maxImageBytes int64
}

func NewTaskHandler(ts TaskOperations, maxImageBytes int64) *TaskHandler {
	return &TaskHandler{taskService: ts, maxImageBytes: maxImageBytes}
}

func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/", h.listTasks)                // GET /api/v1/tasks
	r.Post("/", h.addTask)                 // POST /api/v1/tasks
	r.Get("/{taskID}", h.getTask)          // GET /api/v1/tasks/{id}
	r.Post("/{taskID}/mark", h.markTask)   // POST /api/v1/tasks/{id}/mark
	r.Post("/{taskID}/images", h.upload)   // POST /api/v1/tasks/{id}/images
	r.Post("/{taskID}/solve", h.solveTask) // POST /api/v1/tasks/{id}/solve
}

type MarkRequest struct {
	IsAllowed bool `json:"is_allowed"`
}

type SolveRequest struct {
	Answer string `json:"answer"`
}

type ResultResponse struct {
	Result bool `json:"result"`
}

type paginatedTasksResponse struct {
	Tasks    []model.TaskView `json:"tasks"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func (h *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	tasks, err := h.taskService.ListAvailable(r.Context(), p, model.Page{Number: page, Size: pageSize})
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, paginatedTasksResponse{Tasks: tasks, Page: page, PageSize: pageSize})
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.GetOne(r.Context(), p, chi.URLParam(r, "taskID"))
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) addTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req service.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	id, err := h.taskService.Add(r.Context(), p, req)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *TaskHandler) markTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.taskService.Mark(r.Context(), p, chi.URLParam(r, "taskID"), req.IsAllowed)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ResultResponse{Result: result})
}

func (h *TaskHandler) upload(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing file field: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Failed to read file: "+err.Error())
		return
	}

	ref, err := h.taskService.UploadImage(r.Context(), p, chi.URLParam(r, "taskID"), header.Filename, data)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

func (h *TaskHandler) solveTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.taskService.Solve(r.Context(), p, chi.URLParam(r, "taskID"), req.Answer)
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ResultResponse{Result: result})
}

func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
	}
	return p, ok
}
