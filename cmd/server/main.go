// Package main is the entry point for trailstop, a trailing-stop liquidation controller.
// It polls Tradernet holdings, trails a floor under every asset and sells an asset
// outright once its price falls to the floor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/trailstop/internal/config"
	"github.com/aristath/trailstop/internal/di"
	"github.com/aristath/trailstop/internal/server"
	"github.com/aristath/trailstop/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration (defaults, optional YAML file, environment)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container
// 4. Starts the status server, the scheduler and the trailing stop loop
// 5. Waits for a shutdown signal and performs graceful shutdown
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
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Dur("poll_interval", cfg.Stop.PollInterval).
		Msg("Starting trailstop")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing the ledger flushes its WAL
	defer container.Close()

	// Check the ledger once before the first iteration
	if err := container.Scheduler.RunNow(jobs.Maintenance); err != nil {
		log.Warn().Err(err).Msg("Startup ledger maintenance failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	if cfg.Port > 0 {
		srv = server.New(server.Config{
			Log:            log,
			Port:           cfg.Port,
			DevMode:        cfg.DevMode,
			DataDir:        cfg.DataDir,
			Floors:         container.Controller,
			LedgerDB:       container.LedgerDB,
			LedgerHandler:  container.LedgerHandler,
			EventManager:   container.EventManager,
			Broker:         container.Broker,
			StatusInterval: cfg.Stop.PollInterval,
		})

		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server failed to start")
			}
		}()
	} else {
		log.Info().Msg("Status server disabled")
	}

	container.Scheduler.Start()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := container.Controller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Trailing stop loop stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-loopDone:
		log.Warn().Msg("Trailing stop loop exited")
	}

	// Stop the loop between iterations; an in-flight iteration is allowed to finish
	cancel()
	<-loopDone
	log.Info().Msg("Trailing stop loop stopped")

	container.Scheduler.Stop()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}

	log.Info().Msg("Trailstop stopped")
}
