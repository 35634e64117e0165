package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dark_api/internal/api"
	"dark_api/internal/app/service"
	"dark_api/internal/app/worker"
	"dark_api/internal/common/security"
	"dark_api/internal/domain/repository"
	"dark_api/internal/platform/config"
	"dark_api/internal/platform/database"
	"dark_api/internal/platform/lock"
	"dark_api/internal/platform/queue"
	"dark_api/internal/platform/storage"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	if config.AppConfig.DBAutoMigrate {
		if err := database.Migrate(context.Background(), database.DB); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Database schema applied.")
	}

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()

	// 5. Initialize Storage
	imageStore, err := storage.NewFileImageStore(config.AppConfig.ImageDir)
	if err != nil {
		log.Fatalf("Could not open image store: %v", err)
	}

	// 6. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	taskRepo := repository.NewPgTaskRepository(database.DB)
	solutionRepo := repository.NewPgSolutionRepository(database.DB)

	// 7. Initialize Services
	cleanupQueue := queue.NewCleanupQueue(queue.RDB, config.AppConfig.ImageCleanupQueueName)
	authService := service.NewAuthService(userRepo)
	taskService := service.NewTaskService(service.TaskServiceDeps{
		Tasks:     taskRepo,
		Solutions: solutionRepo,
		Identity:  authService,
		Images:    imageStore,
		Ledger:    userRepo,
		Locker: lock.NewRedisLocker(queue.RDB,
			config.AppConfig.TaskLockTTL,
			config.AppConfig.TaskLockRetries,
			config.AppConfig.TaskLockRetryDelay,
		),
		Cleanup:       cleanupQueue,
		Scorer:        service.ExactMatchScorer{Points: config.AppConfig.SolveReward},
		MaxImages:     config.AppConfig.MaxImagesCount,
		MaxImageBytes: config.AppConfig.MaxImageBytes,
	})

	// 8. Initialize Cleanup Worker (as a goroutine)
	cleanupWorker := worker.NewImageCleanupWorker(cleanupQueue, imageStore, config.AppConfig.ImageCleanupMaxAttempts)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go cleanupWorker.Start(workerCtx)
	fmt.Println("Image cleanup worker started.")

	// 9. Initialize Router & HTTP Server
	router := api.NewRouter(authService, taskService, config.AppConfig.MaxImageBytes)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop

	log.Println("Shutting down server...")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and worker stopped gracefully.")
}
