package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
	"github.com/raphaelgruber/factsheet-go/internal/tools"
)

const factsheetBody = `# Acme Corp

## Overview

Acme builds rockets.

## Products

Anvils and rockets.
`

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, url string) (*models.CompanyData, error) {
	if url == "https://down.example.com" {
		return nil, errors.New("connection refused")
	}
	return &models.CompanyData{
		URL:      url,
		Homepage: models.PageData{URL: url, Title: "Acme", Content: "Rockets", Success: true},
	}, nil
}

type stubComposer struct{}

func (stubComposer) Compose(context.Context, *models.CompanyData, llm.Options) (string, error) {
	return factsheetBody, nil
}

func (stubComposer) Resolve(llm.Options) (config.Provider, string) {
	return config.ProviderOllama, "llama3.1"
}

type toolEnv struct {
	session *mcp.ClientSession
	gen     *service.Generator
	store   *store.FileStore
}

func newToolEnv(t *testing.T) *toolEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := service.NewRegistry(service.RegistryOptions{Logger: logger})
	gen := service.NewGenerator(reg, stubFetcher{}, stubComposer{}, fs, service.GeneratorOptions{Logger: logger})

	server := mcp.NewServer(&mcp.Implementation{Name: "test-factsheet", Version: "0.0.1-test"}, nil)
	tools.RegisterAll(server, &tools.Dependencies{Generator: gen, Store: fs, Logger: logger})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = session.Close() })

	return &toolEnv{session: session, gen: gen, store: fs}
}

func (e *toolEnv) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content should be TextContent")
	return text.Text, result.IsError
}

func TestToolsRegistered(t *testing.T) {
	env := newToolEnv(t)

	result, err := env.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{
		"generate_factsheet", "task_status", "list_factsheets", "get_factsheet", "delete_factsheet",
	}, names)
}

func TestGenerateAndReadFactsheet(t *testing.T) {
	env := newToolEnv(t)

	text, isErr := env.call(t, "generate_factsheet", map[string]any{"url": "acme.com", "wait": true})
	require.False(t, isErr, text)

	var task models.Task
	require.NoError(t, json.Unmarshal([]byte(text), &task))
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "https://acme.com", task.URL)
	require.NotNil(t, task.Result)
	filename := task.Result.Filename

	t.Run("task_status", func(t *testing.T) {
		text, isErr := env.call(t, "task_status", map[string]any{"task_id": task.ID})
		assert.False(t, isErr)
		assert.Contains(t, text, `"status": "completed"`)
	})

	t.Run("list_factsheets", func(t *testing.T) {
		text, isErr := env.call(t, "list_factsheets", map[string]any{})
		assert.False(t, isErr)
		assert.Contains(t, text, "Found 1 factsheets")
		assert.Contains(t, text, filename)
	})

	t.Run("get_factsheet", func(t *testing.T) {
		text, isErr := env.call(t, "get_factsheet", map[string]any{"filename": filename})
		assert.False(t, isErr)
		assert.Contains(t, text, "Acme builds rockets.")
	})

	t.Run("get_factsheet section", func(t *testing.T) {
		text, isErr := env.call(t, "get_factsheet", map[string]any{"filename": filename, "section": "products"})
		assert.False(t, isErr)
		assert.Equal(t, "Anvils and rockets.", text)

		text, isErr = env.call(t, "get_factsheet", map[string]any{"filename": filename, "section": "Pricing"})
		assert.True(t, isErr)
		assert.Contains(t, text, "Available sections")
	})

	t.Run("delete_factsheet", func(t *testing.T) {
		text, isErr := env.call(t, "delete_factsheet", map[string]any{"filename": filename})
		assert.False(t, isErr)
		assert.Contains(t, text, "deleted successfully")

		_, isErr = env.call(t, "delete_factsheet", map[string]any{"filename": filename})
		assert.True(t, isErr, "second delete reports not found")
	})
}

func TestGenerateFailure(t *testing.T) {
	env := newToolEnv(t)

	text, isErr := env.call(t, "generate_factsheet", map[string]any{"url": "https://down.example.com", "wait": true})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to scrape data from https://down.example.com")
}

func TestGenerateWithoutWait(t *testing.T) {
	env := newToolEnv(t)

	text, isErr := env.call(t, "generate_factsheet", map[string]any{"url": "https://acme.com"})
	require.False(t, isErr, text)

	var task models.Task
	require.NoError(t, json.Unmarshal([]byte(text), &task))
	assert.NotEmpty(t, task.ID)
	env.gen.Wait()

	got, err := env.gen.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
}

func TestToolValidation(t *testing.T) {
	env := newToolEnv(t)

	text, isErr := env.call(t, "generate_factsheet", map[string]any{"url": "https://"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Invalid URL")

	text, isErr = env.call(t, "task_status", map[string]any{"task_id": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Task not found")

	text, isErr = env.call(t, "get_factsheet", map[string]any{"filename": "../etc/passwd"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Factsheet not found")
}
