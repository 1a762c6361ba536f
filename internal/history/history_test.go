package history

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/factsheet-go/internal/config"
)

func TestOpenDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, backend := range []string{"", config.HistoryNone} {
		rec, err := Open(context.Background(), config.Config{HistoryBackend: backend}, logger)
		require.NoError(t, err)
		assert.Nil(t, rec, "backend %q", backend)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{HistoryBackend: "mongo"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown history backend "mongo"`)
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), config.Config{HistoryBackend: config.HistoryPostgres}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-3))
	assert.Equal(t, 7, listLimit(7))
}
