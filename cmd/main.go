package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/courtside/achievements"
	"github.com/Dosada05/courtside/config"
	"github.com/Dosada05/courtside/db"
	"github.com/Dosada05/courtside/handlers"
	"github.com/Dosada05/courtside/hub"
	"github.com/Dosada05/courtside/jobs"
	"github.com/Dosada05/courtside/middleware"
	"github.com/Dosada05/courtside/repositories"
	"github.com/Dosada05/courtside/rewards"
	api "github.com/Dosada05/courtside/routes"
	"github.com/Dosada05/courtside/services"
	"github.com/Dosada05/courtside/session"
	"github.com/Dosada05/courtside/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("allow_guests", cfg.AllowGuests),
		slog.Duration("claim_timeout", cfg.ClaimTimeout),
		slog.Int("max_processing_attempts", cfg.MaxProcessingAttempts))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.EnsureSchema(schemaCtx, dbConn)
	cancelSchema()
	if err != nil {
		logger.Error("failed to prepare database schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Result archiving is optional; without R2 settings results live only in Postgres.
	var archiver services.Archiver
	r2Cfg := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Cfg.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), r2Cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewResultArchiver(uploader)
		logger.Info("Cloudflare R2 result archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	historyRepo := repositories.NewPostgresHistoryRepository(dbConn)
	recordRepo := repositories.NewPostgresMatchRecordRepository(dbConn)
	rewardRepo := repositories.NewPostgresRewardRepository(dbConn)
	matchStore := repositories.NewMatchStore(dbConn, historyRepo, recordRepo, logger)

	catalog := rewards.NewCatalogCache(rewardRepo, cfg.RewardCacheTTL)
	processor := services.NewMatchProcessor(historyRepo, matchStore, catalog, achievements.Default(), archiver, logger)
	historyService := services.NewHistoryService(historyRepo, catalog)

	wsHub := hub.NewHub(logger)
	go wsHub.Run()

	registry := session.NewRegistry(wsHub, session.Options{
		ClaimTimeout:      cfg.ClaimTimeout,
		ProcessingTimeout: cfg.ProcessingTimeout,
		MaxAttempts:       cfg.MaxProcessingAttempts,
		IdleTimeout:       cfg.SessionIdleTimeout,
	}, logger)
	dispatcher := hub.NewDispatcher(wsHub, registry, processor, cfg.ProcessingTimeout, logger)
	logger.Info("session registry and websocket hub started")

	sweeper, err := jobs.NewSweeper(registry, cfg.SweepInterval, logger)
	if err != nil {
		logger.Error("failed to create session sweeper", slog.Any("error", err))
		os.Exit(1)
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Stop(); err != nil {
			logger.Error("failed to stop session sweeper", slog.Any("error", err))
		}
	}()

	identity := middleware.NewIdentityResolver(cfg.JWTSecretKey, cfg.AllowGuests, logger)
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		WebSocket: handlers.NewWebSocketHandler(wsHub, dispatcher, cfg.CORSAllowedOrigins, logger),
		Sessions:  handlers.NewSessionHandler(registry),
		History:   handlers.NewHistoryHandler(historyService),
	}, identity, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		// Let in-flight match processing report back before the pool closes.
		dispatcher.Wait()
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
