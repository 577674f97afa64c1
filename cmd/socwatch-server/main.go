// Package main is the entry point for the socwatch detection server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socwatch/internal/api"
	"socwatch/internal/config"
	"socwatch/internal/engine"
	"socwatch/internal/generator"
	"socwatch/internal/queue"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"queue_size", cfg.Queue.Size,
		"generator_enabled", cfg.Generator.Enabled,
	)

	// Initialize components
	store := config.NewSettingsStore(cfg.Detection)
	eng := engine.New(cfg.Engine, store)
	eventQueue := queue.NewRingBuffer(cfg.Queue.Size)
	policy := generator.NewPolicy()
	gen := generator.New(cfg.Generator, policy, eventQueue, logger)

	handler := api.NewHandler(eng, store, gen, policy, eventQueue, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Pump events from the queue into the detection engine. Bursts are
	// ingested back to back; an idle queue is re-checked every poll
	// interval. On shutdown the remainder is drained before exit.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		poll := time.NewTicker(cfg.Queue.PollInterval.Std())
		defer poll.Stop()
		for {
			if batch := eventQueue.TryPopBatch(cfg.Queue.BatchSize); batch != nil {
				eng.Ingest(batch)
				continue
			}
			select {
			case <-ctx.Done():
				for {
					batch := eventQueue.TryPopBatch(cfg.Queue.BatchSize)
					if batch == nil {
						return
					}
					eng.Ingest(batch)
				}
			case <-poll.C:
			}
		}
	}()

	// Start synthetic telemetry if enabled
	if cfg.Generator.Enabled {
		go gen.Run(ctx)
		slog.Info("telemetry generator started",
			"benign_interval", cfg.Generator.BenignInterval.Std(),
			"attack_interval", cfg.Generator.AttackInterval.Std(),
		)
	}

	// Start HTTP server
	go func() {
		slog.Info("starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Stop the generator and signal the pump to drain; close the queue
	// so late pushes are rejected
	cancel()
	eventQueue.Close()

	select {
	case <-pumpDone:
	case <-shutdownCtx.Done():
		slog.Warn("pump did not drain before shutdown deadline")
	}

	// Log final metrics
	queueMetrics := eventQueue.Metrics()
	stats := eng.Stats()
	slog.Info("shutdown complete",
		"events_pushed", queueMetrics.Pushed,
		"events_popped", queueMetrics.Popped,
		"events_dropped", queueMetrics.Dropped,
		"alerts", stats["alerts"],
		"investigations", stats["investigations"],
	)
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
