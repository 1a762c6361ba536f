package server_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/factsheet-go/internal/server"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
	"github.com/raphaelgruber/factsheet-go/internal/tools"
)

func testDeps(t *testing.T, logger *slog.Logger) *tools.Dependencies {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := service.NewRegistry(service.RegistryOptions{Logger: logger})
	gen := service.NewGenerator(reg, nil, nil, fs, service.GeneratorOptions{Logger: logger})
	return &tools.Dependencies{Generator: gen, Store: fs, Logger: logger}
}

func connect(t *testing.T, srv *server.Server) *mcp.ClientSession {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = srv.MCPServer().Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestServerWithInMemoryTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := server.New("0.1.0-test", logger)
	srv.Setup(testDeps(t, logger))
	session := connect(t, srv)

	// Verify server info from initialize response
	initResult := session.InitializeResult()
	require.NotNil(t, initResult, "initialize result should not be nil")
	assert.Equal(t, "factsheet", initResult.ServerInfo.Name)
	assert.Equal(t, "0.1.0-test", initResult.ServerInfo.Version)
	assert.Contains(t, initResult.Instructions, "generate_factsheet")

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err, "ListTools should succeed")
	assert.Len(t, toolsResult.Tools, 5)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := server.New("0.1.0-test", logger)
	srv.Setup(testDeps(t, logger))
	session := connect(t, srv)

	// Make multiple requests
	for i := 0; i < 3; i++ {
		_, err := session.ListTools(context.Background(), nil)
		require.NoError(t, err, "request %d should succeed", i)
	}

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "task_status",
		Arguments: map[string]any{"task_id": "missing"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	logs := buf.String()
	assert.Contains(t, logs, "method=tools/list")
	assert.Contains(t, logs, "tool returned error")
	assert.Contains(t, logs, "tool=task_status")
}
