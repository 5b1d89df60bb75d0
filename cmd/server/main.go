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

	"ber-tracker/internal/blob"
	"ber-tracker/internal/config"
	"ber-tracker/internal/database"
	"ber-tracker/internal/handlers"
	"ber-tracker/internal/logger"
	"ber-tracker/internal/metrics"
	"ber-tracker/internal/models"
	"ber-tracker/internal/reporting"
	"ber-tracker/internal/server"
	"ber-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		ServiceName: "ber-tracker",
	})
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := database.EnsureUsers(db, log, database.SeedUser{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Role:     models.RoleAdmin,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin user")
	}

	blobs, err := blob.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob store")
	}
	log.Info().Str("driver", string(blobs.Driver())).Msg("blob store ready")

	m := metrics.New()
	wf := workflow.NewService(db, blobs, m, log)
	reports := reporting.New(db, log)

	r := server.NewRouter(server.Deps{
		DB:            db,
		Handler:       handlers.New(db, wf, reports, log),
		Metrics:       m,
		Log:           log,
		SessionSecret: cfg.SessionSecret,
		SecureCookies: !cfg.IsDevelopment(),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
