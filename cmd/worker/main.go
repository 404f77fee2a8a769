// Package main provides the entry point for the worker service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/laboveda/internal/bootstrap"
	"github.com/thebtf/laboveda/internal/config"
	"github.com/thebtf/laboveda/internal/maintenance"
	"github.com/thebtf/laboveda/internal/worker"
)

var Version = "dev"

func main() {
	// A local .env is optional.
	_ = godotenv.Load()

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare data directory")
	}
	settingsPath := config.SettingsPath()
	cfg, err := config.Load(settingsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", settingsPath).Msg("Failed to load settings")
	}

	logger := bootstrap.NewLogger(cfg, os.Stderr)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("driver", cfg.DBDriver).
		Msg("Starting laboveda worker")

	rt, err := bootstrap.Open(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maint := maintenance.NewService(rt.Engine, maintenance.Config{
		Interval:    time.Duration(cfg.RecalibrateIntervalMinutes) * time.Minute,
		Concurrency: cfg.RecalibrateConcurrency,
	}, logger)
	go maint.Start(ctx)

	go func() {
		err := config.Watch(ctx, settingsPath, logger, rt.ApplyConfig)
		if err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Settings watcher stopped")
		}
	}()

	svc := worker.NewService(rt.Engine, worker.Options{
		Version:     Version,
		Port:        cfg.WorkerPort,
		APIToken:    cfg.APIToken,
		Concurrency: cfg.RecalibrateConcurrency,
		Health:      rt.Store,
		Maintenance: maint,
		Log:         logger,
	})
	if err := svc.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start service")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Received shutdown signal")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
	maint.Stop()
	maint.Wait()

	if err := rt.Close(); err != nil {
		logger.Error().Err(err).Msg("Close error")
	}
	logger.Info().Msg("Worker shutdown complete")
}
