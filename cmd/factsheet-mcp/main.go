// Package main provides the entry point for the factsheet MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/app"
	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/server"
	"github.com/raphaelgruber/factsheet-go/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	// Log startup info
	logger.Info("factsheet-mcp starting",
		"version", version,
		"output_dir", cfg.OutputDir,
		"provider", cfg.LLMProvider,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("waiting for running tasks")
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}()

	go a.Registry.RunJanitor(ctx, 5*time.Minute)

	// Create and setup server
	srv := server.New(version, logger)
	srv.Setup(&tools.Dependencies{
		Generator: a.Generator,
		Store:     a.Store,
		Logger:    logger,
	})

	// Log ready state
	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		return
	}

	logger.Info("shutdown complete")
}
