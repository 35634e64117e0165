package api

import (
	"net/http"
	"time"

	"dark_api/internal/api/handler"
	"dark_api/internal/app/service"
	"dark_api/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	taskService *service.TaskService,
	maxImageBytes int64,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Looks for "Authorization: Bearer T" and puts the verified token in context.
	// Routes that need a caller add middleware.Authenticator on top.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		userHandler := handler.NewUserHandler(authService)
		v1.Route("/users", userHandler.RegisterRoutes)

		taskHandler := handler.NewTaskHandler(taskService, maxImageBytes)
		v1.Route("/tasks", taskHandler.RegisterRoutes)

		imageHandler := handler.NewImageHandler(taskService)
		v1.Route("/images", imageHandler.RegisterRoutes)
	})

	return r
}
