// Package app wires the factsheet generator's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/history"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/scraper"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

// App holds every long-lived component.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Store     *store.FileStore
	Fetcher   *scraper.Fetcher
	Composer  *llm.Composer
	Catalog   *llm.Catalog
	Registry  *service.Registry
	Generator *service.Generator
	History   history.Recorder // nil when disabled
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	composerOpts []llm.ComposerOption
}

// WithComposerOptions passes extra options to the LLM composer.
func WithComposerOptions(opts ...llm.ComposerOption) Option {
	return func(o *options) { o.composerOpts = append(o.composerOpts, opts...) }
}

// New creates an App with all dependencies.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Create metrics collector for runtime statistics
	mc := metrics.NewCollector()

	st, err := store.NewFileStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	rec, err := history.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open task history: %w", err)
	}

	catalog, err := llm.NewCatalog(cfg.OllamaHost, nil)
	if err != nil {
		closeRecorder(ctx, rec)
		return nil, err
	}

	fetcher := scraper.New(scraper.Options{
		Timeout:   cfg.FetchTimeout,
		Delay:     cfg.FetchDelay,
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})

	composerOpts := append([]llm.ComposerOption{
		llm.WithMetrics(mc),
		llm.WithLogger(logger),
	}, o.composerOpts...)
	composer := llm.NewComposer(cfg, composerOpts...)

	regOpts := service.RegistryOptions{TTL: cfg.TaskTTL, Logger: logger}
	if rec != nil {
		regOpts.Recorder = rec
	}
	registry := service.NewRegistry(regOpts)

	generator := service.NewGenerator(registry, fetcher, composer, st, service.GeneratorOptions{
		MaxConcurrent: cfg.MaxConcurrent,
		Metrics:       mc,
		Logger:        logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   mc,
		Store:     st,
		Fetcher:   fetcher,
		Composer:  composer,
		Catalog:   catalog,
		Registry:  registry,
		Generator: generator,
		History:   rec,
	}, nil
}

// Close waits for running tasks until ctx is done, flushes queued history
// snapshots and closes the history backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Generator.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.History != nil {
		if err := a.History.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close task history: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeRecorder(ctx context.Context, rec history.Recorder) {
	if rec != nil {
		_ = rec.Close(ctx)
	}
}
