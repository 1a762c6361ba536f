package history

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/factsheet-go/internal/db"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

// SurrealRecorder stores task snapshots in the task_history table.
type SurrealRecorder struct {
	client *db.Client
}

// NewSurrealRecorder initializes the schema and wraps client.
func NewSurrealRecorder(ctx context.Context, client *db.Client) (*SurrealRecorder, error) {
	if err := client.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("surreal history: %w", err)
	}
	return &SurrealRecorder{client: client}, nil
}

func (r *SurrealRecorder) Record(ctx context.Context, task models.Task) error {
	return r.client.QueryUpsertTask(ctx, task)
}

func (r *SurrealRecorder) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := r.client.QueryGetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return task, nil
}

func (r *SurrealRecorder) List(ctx context.Context, limit int) ([]models.Task, error) {
	return r.client.QueryListTasks(ctx, listLimit(limit))
}

func (r *SurrealRecorder) Close(ctx context.Context) error {
	return r.client.Close(ctx)
}
