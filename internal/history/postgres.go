package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS task_history (
		id           TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		progress     INTEGER NOT NULL CHECK (progress BETWEEN 0 AND 100),
		message      TEXT NOT NULL,
		result       JSONB,
		error        TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL,
		provider     TEXT NOT NULL DEFAULT '',
		model        TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS task_history_created_idx ON task_history (created_at DESC);
`

// PostgresRecorder upserts task snapshots into the task_history table.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder opens a pool, pings it and ensures the table exists.
func NewPostgresRecorder(ctx context.Context, databaseURL string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create task_history: %w", err)
	}
	return &PostgresRecorder{pool: pool}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, task models.Task) error {
	var result []byte
	if task.Result != nil {
		var err error
		if result, err = json.Marshal(task.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_history (
			id, status, progress, message, result, error,
			url, provider, model, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`,
		task.ID,
		string(task.Status),
		task.Progress,
		task.Message,
		result,
		task.Error,
		task.URL,
		task.Provider,
		task.Model,
		task.CreatedAt,
		task.UpdatedAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

const postgresColumns = `id, status, progress, message, result, error,
	url, provider, model, created_at, updated_at, completed_at`

func (r *PostgresRecorder) Get(ctx context.Context, id string) (*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+postgresColumns+` FROM task_history WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

func (r *PostgresRecorder) List(ctx context.Context, limit int) ([]models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postgresColumns+`
		FROM task_history
		ORDER BY created_at DESC
		LIMIT $1
	`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.CollectableRow) (models.Task, error) {
	var (
		task        models.Task
		status      string
		result      []byte
		completedAt *time.Time
	)
	if err := row.Scan(
		&task.ID,
		&status,
		&task.Progress,
		&task.Message,
		&result,
		&task.Error,
		&task.URL,
		&task.Provider,
		&task.Model,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completedAt,
	); err != nil {
		return task, err
	}
	task.Status = models.TaskStatus(status)
	task.CompletedAt = completedAt
	if len(result) > 0 {
		task.Result = &models.TaskResult{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return task, fmt.Errorf("decode result: %w", err)
		}
	}
	return task, nil
}

func (r *PostgresRecorder) Close(context.Context) error {
	r.pool.Close()
	return nil
}
