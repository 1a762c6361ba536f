package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

// TaskRecord is a task as stored in the task_history table.
type TaskRecord struct {
	ID          *surrealmodels.RecordID `json:"id,omitempty"`
	TaskID      string                  `json:"task_id"`
	Status      string                  `json:"status"`
	Progress    int                     `json:"progress"`
	Message     string                  `json:"message"`
	Result      *models.TaskResult      `json:"result,omitempty"`
	Error       *string                 `json:"error,omitempty"`
	URL         string                  `json:"url"`
	Provider    *string                 `json:"provider,omitempty"`
	Model       *string                 `json:"model,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// Task converts the record back to a task snapshot.
func (r TaskRecord) Task() models.Task {
	return models.Task{
		ID:          r.TaskID,
		Status:      models.TaskStatus(r.Status),
		Progress:    r.Progress,
		Message:     r.Message,
		Result:      r.Result,
		Error:       deref(r.Error),
		URL:         r.URL,
		Provider:    deref(r.Provider),
		Model:       deref(r.Model),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}

// QueryUpsertTask writes the latest snapshot of a task.
func (c *Client) QueryUpsertTask(ctx context.Context, task models.Task) error {
	sql := `
		UPSERT type::record("task_history", $id) CONTENT {
			task_id: $id,
			status: $status,
			progress: $progress,
			message: $message,
			result: $result,
			error: $error,
			url: $url,
			provider: $provider,
			model: $model,
			created_at: $created_at,
			updated_at: $updated_at,
			completed_at: $completed_at
		} RETURN NONE
	`

	var result any
	if task.Result != nil {
		result = map[string]any{
			"filename":     task.Result.Filename,
			"path":         task.Result.Path,
			"word_count":   task.Result.WordCount,
			"company_name": task.Result.CompanyName,
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":           task.ID,
		"status":       string(task.Status),
		"progress":     task.Progress,
		"message":      task.Message,
		"result":       result,
		"error":        optional(task.Error),
		"url":          task.URL,
		"provider":     optional(task.Provider),
		"model":        optional(task.Model),
		"created_at":   task.CreatedAt,
		"updated_at":   task.UpdatedAt,
		"completed_at": task.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert task: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGetTask retrieves a task by id.
// Returns nil if not found.
func (c *Client) QueryGetTask(ctx context.Context, id string) (*models.Task, error) {
	results, err := surrealdb.Query[[]TaskRecord](ctx, c.db, `
		SELECT * FROM type::record("task_history", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get task: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	task := (*results)[0].Result[0].Task()
	return &task, nil
}

// QueryListTasks returns the most recently created tasks first.
func (c *Client) QueryListTasks(ctx context.Context, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]TaskRecord](ctx, c.db, `
		SELECT * FROM task_history ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Task{}, nil
	}
	records := (*results)[0].Result
	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.Task())
	}
	return tasks, nil
}

// optional maps empty strings to NONE so option<string> fields stay unset.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
