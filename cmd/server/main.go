// Package main is the entry point for the Runway projection service.
//
// It serves the simulation API over HTTP, streams run progress over SSE and WebSocket,
// stores the latest result per scenario in SQLite and prunes expired results on a
// cron schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/di"
	"github.com/aristath/runway/internal/server"
	"github.com/aristath/runway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("default_iterations", cfg.Simulation.DefaultIterations).
		Int("default_horizon", cfg.Simulation.DefaultHorizon).
		Msg("Starting Runway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		Workers:      container.Engine.Workers(),
		Simulation:   container.SimulationService,
		Results:      container.ResultsRepo,
		ResultsDB:    container.ResultsDB,
		EventManager: container.EventManager,
		Scheduler:    container.Scheduler,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	container.Scheduler.Stop()

	// In-flight runs are cancelled before the server drains so that synchronous
	// requests return instead of holding shutdown open
	container.SimulationService.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
