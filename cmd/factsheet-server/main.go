// Package main provides the REST API server and dashboard for the factsheet generator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/api"
	"github.com/raphaelgruber/factsheet-go/internal/app"
	"github.com/raphaelgruber/factsheet-go/internal/config"
)

const version = "0.1.0"

// janitorInterval is how often finished tasks past their TTL are evicted.
const janitorInterval = 5 * time.Minute

func main() {
	// Parse flags
	port := flag.String("port", "", "listen port (default: FACTSHEET_SERVER_PORT or 8000)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != "" {
		cfg.ServerPort = *port
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	logger.Info("starting factsheet-server",
		"version", version,
		"port", cfg.ServerPort,
		"output_dir", cfg.OutputDir,
		"provider", cfg.LLMProvider,
		"history", cfg.HistoryBackend,
	)

	// Create app with all dependencies
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	apiServer := api.New(api.Deps{
		Generator:       a.Generator,
		Store:           a.Store,
		Catalog:         a.Catalog,
		History:         a.History,
		Metrics:         a.Metrics,
		Logger:          logger,
		DefaultProvider: cfg.LLMProvider,
		CORSOrigins:     cfg.CORSOrigins,
		Version:         version,
	})

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      apiServer.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go a.Registry.RunJanitor(janitorCtx, janitorInterval)

	// Start server in goroutine
	go func() {
		logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api", cfg.ServerPort))
		logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%s/dashboard", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down server...", "signal", sig.String())
	stopJanitor()

	// Graceful shutdown with timeout: stop accepting requests, then let
	// running tasks finish.
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exitCode := 0
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		exitCode = 1
	}
	if err := a.Close(ctx); err != nil {
		logger.Error("failed to close app", "error", err)
		exitCode = 1
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		_ = cleanup()
		os.Exit(exitCode)
	}
}
