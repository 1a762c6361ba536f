//go:build integration

package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start %s", req.Image)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// exerciseRecorder checks upsert semantics, lookup by id and newest-first listing.
func exerciseRecorder(t *testing.T, rec Recorder) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := range 3 {
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, rec.Record(ctx, models.Task{
			ID:        fmt.Sprintf("task-%d", i),
			Status:    models.TaskStatusPending,
			Message:   "Task queued for processing",
			URL:       "https://acme.example",
			CreatedAt: created,
			UpdatedAt: created,
		}))
	}

	done := base.Add(time.Hour)
	require.NoError(t, rec.Record(ctx, models.Task{
		ID:       "task-1",
		Status:   models.TaskStatusCompleted,
		Progress: 100,
		Message:  "Factsheet generated successfully",
		Result: &models.TaskResult{
			Filename:    "acme.md",
			WordCount:   250,
			CompanyName: "Acme",
		},
		URL:         "https://acme.example",
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		CreatedAt:   base.Add(time.Minute),
		UpdatedAt:   done,
		CompletedAt: &done,
	}))

	tasks, err := rec.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "task-2", tasks[0].ID)
	assert.Equal(t, "task-1", tasks[1].ID)
	assert.Equal(t, "task-0", tasks[2].ID)

	updated := tasks[1]
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)
	require.NotNil(t, updated.Result)
	assert.Equal(t, 250, updated.Result.WordCount)
	require.NotNil(t, updated.CompletedAt)

	limited, err := rec.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := rec.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.NotNil(t, got.Result)
	assert.Equal(t, "acme.md", got.Result.Filename)

	_, err = rec.Get(ctx, "never-recorded")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRecorder(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379")

	ctx := context.Background()
	rec, err := NewRedisRecorder(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer rec.Close(ctx)

	exerciseRecorder(t, rec)
}

func TestPostgresRecorder(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "factsheet",
			"POSTGRES_PASSWORD": "factsheet",
			"POSTGRES_DB":       "factsheet",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	ctx := context.Background()
	rec, err := NewPostgresRecorder(ctx, fmt.Sprintf("postgres://factsheet:factsheet@%s/factsheet?sslmode=disable", addr))
	require.NoError(t, err)
	defer rec.Close(ctx)

	exerciseRecorder(t, rec)
}
