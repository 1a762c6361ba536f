//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)
	os.Exit(code)
}

// wipeTasks empties the history table between tests.
func wipeTasks(t *testing.T) {
	t.Helper()
	_, err := surrealdb.Query[any](context.Background(), testDB.db, "DELETE "+TaskTable, nil)
	require.NoError(t, err)
}

func testTask(id string, created time.Time) models.Task {
	return models.Task{
		ID:        id,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "Task queued for processing",
		URL:       "https://acme.example",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestClientQuery(t *testing.T) {
	ctx := context.Background()

	result, err := surrealdb.Query[any](ctx, testDB.db, "INFO FOR DB", nil)
	require.NoError(t, err, "should query database info")
	assert.NotNil(t, result)
}

func TestClientReconnection(t *testing.T) {
	ctx := context.Background()

	_, err := surrealdb.Query[any](ctx, testDB.db, "RETURN 1", nil)
	require.NoError(t, err, "should execute query before wait")

	time.Sleep(2 * time.Second)

	_, err = surrealdb.Query[any](ctx, testDB.db, "RETURN 2", nil)
	require.NoError(t, err, "should execute query after wait (connection maintained)")
}

func TestUpsertAndGetTask(t *testing.T) {
	ctx := context.Background()
	wipeTasks(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	task := testTask("task-1", now)
	require.NoError(t, testDB.QueryUpsertTask(ctx, task))

	got, err := testDB.QueryGetTask(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.Result)

	// Latest snapshot replaces the earlier one.
	done := now.Add(time.Second)
	task.Status = models.TaskStatusCompleted
	task.Progress = 100
	task.Message = "Factsheet generated successfully"
	task.Provider = "openai"
	task.Model = "gpt-4o-mini"
	task.Result = &models.TaskResult{
		Filename:    "acme.md",
		Path:        "/tmp/acme.md",
		WordCount:   42,
		CompanyName: "Acme",
	}
	task.UpdatedAt = done
	task.CompletedAt = &done
	require.NoError(t, testDB.QueryUpsertTask(ctx, task))

	got, err = testDB.QueryGetTask(ctx, "task-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "openai", got.Provider)
	require.NotNil(t, got.Result)
	assert.Equal(t, 42, got.Result.WordCount)
	require.NotNil(t, got.CompletedAt)
}

func TestGetTaskMissing(t *testing.T) {
	ctx := context.Background()
	wipeTasks(t)

	got, err := testDB.QueryGetTask(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertTaskRejectsBadProgress(t *testing.T) {
	ctx := context.Background()

	task := testTask("task-bad", time.Now().UTC())
	task.Progress = 150
	err := testDB.QueryUpsertTask(ctx, task)
	require.Error(t, err)
}

func TestListTasksNewestFirst(t *testing.T) {
	ctx := context.Background()
	wipeTasks(t)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := range 3 {
		task := testTask(fmt.Sprintf("task-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, testDB.QueryUpsertTask(ctx, task))
	}

	tasks, err := testDB.QueryListTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task-2", tasks[0].ID)
	assert.Equal(t, "task-1", tasks[1].ID)
}
