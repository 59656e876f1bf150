package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pdfworks/api/auth"
	"pdfworks/api/cache"
	"pdfworks/api/config"
	"pdfworks/api/database"
	"pdfworks/api/handlers"
	"pdfworks/api/kafka"
	"pdfworks/api/middleware"
	"pdfworks/api/repository"
	"pdfworks/api/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("API service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	producer, err := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisClient)
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)

	taskService := service.NewTaskService(repo, statusCache, producer, cfg.KafkaTopic, logger)
	authService := service.NewAuthService(repo, tokens, cfg.BcryptCost, logger)
	artifactService := service.NewArtifactService(repo, logger)

	taskHandler := handlers.NewTaskHandler(taskService, logger, cfg.DataDir, cfg.MaxFileSize)
	authHandler := handlers.NewAuthHandler(authService, logger)
	artifactHandler := handlers.NewArtifactHandler(artifactService, logger)

	requireAuth := middleware.Auth(tokens, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("POST /api/upload", requireAuth(http.HandlerFunc(taskHandler.Upload)))
	mux.Handle("POST /api/merge", requireAuth(http.HandlerFunc(taskHandler.Merge)))
	mux.Handle("GET /api/tasks/{id}", requireAuth(http.HandlerFunc(taskHandler.Status)))
	mux.Handle("GET /api/artifacts", requireAuth(http.HandlerFunc(artifactHandler.List)))
	mux.Handle("GET /api/artifacts/{id}/download", requireAuth(http.HandlerFunc(artifactHandler.Download)))

	handler := middleware.TraceID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
