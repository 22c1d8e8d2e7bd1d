package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"plate-service/internal/auth"
	"plate-service/internal/config"
	"plate-service/internal/db"
	"plate-service/internal/events"
	httphandler "plate-service/internal/http"
	"plate-service/internal/http/middleware"
	"plate-service/internal/logger"
	"plate-service/internal/recognizer"
	"plate-service/internal/repository"
	"plate-service/internal/service"
	"plate-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment, cfg.LogLevel)

	if err := cfg.RequireServer(); err != nil {
		appLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}

	plateRepo := repository.NewPlateRepository(database)

	if err := cfg.RequireRecognizer(); err != nil {
		appLogger.Warn().Err(err).Msg("plate recognizer not configured, recognition uploads will fail")
	}
	plateReader := recognizer.NewClient(cfg.Recognizer, appLogger)

	// Object storage is optional for the server; uploads are kept without images when absent.
	var imageStore service.ImageStore
	s3Client, err := storage.NewClient(cfg.Storage)
	switch {
	case err == nil:
		imageStore = s3Client
	case errors.Is(err, storage.ErrNotConfigured):
		appLogger.Warn().Msg("object storage not configured, recognition images will not be stored")
	default:
		appLogger.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	publisher, err := events.New(cfg.NATS, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect NATS")
	}
	defer publisher.Close()

	plateService := service.NewPlateService(plateRepo, plateReader, imageStore, publisher, cfg, appLogger)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(plateService, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, database, appLogger)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Msg("starting plate service")

	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "plate-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server exited")
}
