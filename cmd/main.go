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
	_ "github.com/lib/pq"
	"github.com/nghiatd-29581/badminton-tournament-app/brackets"
	"github.com/nghiatd-29581/badminton-tournament-app/config"
	"github.com/nghiatd-29581/badminton-tournament-app/db"
	"github.com/nghiatd-29581/badminton-tournament-app/handlers"
	"github.com/nghiatd-29581/badminton-tournament-app/live"
	"github.com/nghiatd-29581/badminton-tournament-app/middleware"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
	api "github.com/nghiatd-29581/badminton-tournament-app/routes"
	"github.com/nghiatd-29581/badminton-tournament-app/services"
	"github.com/nghiatd-29581/badminton-tournament-app/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Banner uploads are optional; without R2 the rest of the system
	// runs unchanged and the upload endpoint answers 503.
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("Cloudflare R2 not configured, banner uploads disabled")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	logger.Info("repositories initialized")

	standingsService := services.NewStandingsService(dbConn, tournamentRepo, matchRepo, standingRepo, logger)
	matchService := services.NewMatchService(matchRepo, standingsService, logger)
	tournamentService := services.NewTournamentService(
		dbConn,
		tournamentRepo,
		teamRepo,
		matchRepo,
		standingRepo,
		brackets.NewRoundRobinGenerator(),
		uploader,
		logger,
	)
	logger.Info("services initialized")

	wsHub := live.NewHub(logger)
	go wsHub.Run(rootCtx)

	feed := live.NewFeed(cfg.DatabaseURL, logger)
	go func() {
		if err := feed.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("change feed stopped", slog.Any("error", err))
		}
	}()

	synchronizer := live.NewSynchronizer(tournamentRepo, teamRepo, matchRepo, standingRepo, wsHub, feed.Events(), logger)
	go synchronizer.Run(rootCtx)
	logger.Info("live view synchronizer started")

	// Standings repair scheduler: recomputes any tournament whose
	// standings drifted from its completed matches (a finish whose
	// aggregation did not land).
	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		logger.Info("standings reconciliation scheduler started",
			slog.Duration("interval", cfg.ReconcileInterval))

		if err := standingsService.ReconcileAll(rootCtx); err != nil {
			logger.Error("reconciliation: initial run failed", slog.Any("error", err))
		}
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if err := standingsService.ReconcileAll(rootCtx); err != nil {
					logger.Error("reconciliation: periodic run failed", slog.Any("error", err))
				}
			}
		}
	}()

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, standingsService)
	matchHandler := handlers.NewMatchHandler(matchService)
	liveHandler := handlers.NewLiveHandler(synchronizer)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	adminAuth := middleware.NewAdminAuth(cfg.AdminUser, cfg.AdminPassword, cfg.AdminPasswordHash)

	router := chi.NewRouter()
	api.SetupRoutes(router, tournamentHandler, matchHandler, liveHandler, webSocketHandler, adminAuth)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
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
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		cancel()
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
