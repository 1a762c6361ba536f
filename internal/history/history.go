// Package history mirrors task snapshots into a durable backend so finished
// runs remain visible after the in-memory registry has evicted them.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/db"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

const defaultListLimit = 50

// ErrNotFound is returned by Get for ids that were never recorded.
var ErrNotFound = errors.New("task not in history")

// Recorder persists task snapshots. Each Record call replaces the stored
// snapshot for the task's id.
type Recorder interface {
	Record(ctx context.Context, task models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, limit int) ([]models.Task, error)
	Close(ctx context.Context) error
}

// Open builds the recorder selected by cfg.HistoryBackend.
// Returns (nil, nil) when history is disabled.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.HistoryBackend {
	case "", config.HistoryNone:
		return nil, nil
	case config.HistorySurreal:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		rec, err := NewSurrealRecorder(ctx, client)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		logger.Info("task history enabled", "backend", cfg.HistoryBackend, "url", cfg.SurrealDBURL)
		return rec, nil
	case config.HistoryRedis:
		rec, err := NewRedisRecorder(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("task history enabled", "backend", cfg.HistoryBackend, "addr", cfg.RedisAddr)
		return rec, nil
	case config.HistoryPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
		rec, err := NewPostgresRecorder(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("task history enabled", "backend", cfg.HistoryBackend)
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q (want none, surreal, redis or postgres)", cfg.HistoryBackend)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
