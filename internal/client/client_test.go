package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/factsheet-go/internal/api"
	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type okFetcher struct{}

func (okFetcher) Fetch(_ context.Context, url string) (*models.CompanyData, error) {
	if url == "https://bad.example" {
		return nil, errors.New("timeout")
	}
	return &models.CompanyData{
		URL:      url,
		Homepage: models.PageData{URL: url, Title: "Globex", Content: "Globex makes things", Success: true},
	}, nil
}

type okComposer struct{}

func (okComposer) Compose(context.Context, *models.CompanyData, llm.Options) (string, error) {
	return "# Globex\n\nGlobex makes things.", nil
}

func (okComposer) Resolve(llm.Options) (config.Provider, string) {
	return config.ProviderOllama, "llama3.1"
}

func newTestServer(t *testing.T) (*Client, *store.FileStore) {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := service.NewRegistry(service.RegistryOptions{Logger: discard})
	gen := service.NewGenerator(reg, okFetcher{}, okComposer{}, st, service.GeneratorOptions{Logger: discard})

	srv := api.New(api.Deps{Generator: gen, Store: st, Logger: discard})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		gen.Wait()
	})
	return New(ts.URL), st
}

func waitDone(t *testing.T, c *Client, id string) *models.Task {
	t.Helper()
	var task *models.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = c.GetTask(context.Background(), id)
		require.NoError(t, err)
		return task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("FACTSHEET_SERVER_URL", "")
	t.Setenv("FACTSHEET_CLIENT_TIMEOUT", "")
	c := New("")
	assert.Equal(t, DefaultURL, c.BaseURL())
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)

	t.Setenv("FACTSHEET_SERVER_URL", "http://factsheets.internal:9000/")
	t.Setenv("FACTSHEET_CLIENT_TIMEOUT", "2m")
	c = New("")
	assert.Equal(t, "http://factsheets.internal:9000", c.BaseURL())
	assert.Equal(t, 2*time.Minute, c.httpClient.Timeout)
}

func TestGenerateAndGetTask(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	resp, err := c.Generate(ctx, models.GenerateRequest{URL: "https://globex.example"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.TaskID)

	task := waitDone(t, c, resp.TaskID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, "globex.md", task.Result.Filename)
	assert.Equal(t, "ollama", task.Provider)

	list, err := c.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestGenerateInvalidURL(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.Generate(context.Background(), models.GenerateRequest{URL: "globex.example"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "invalid_url", apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestGetTaskNotFound(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.GetTask(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateBulk(t *testing.T) {
	c, _ := newTestServer(t)

	resp, err := c.GenerateBulk(context.Background(), []string{"https://globex.example", "https://bad.example"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Accepted)

	failed := waitDone(t, c, resp.Tasks[1].TaskID)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "Failed to scrape data from https://bad.example", failed.Error)
}

func TestFactsheetOperations(t *testing.T) {
	c, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.Write(ctx, "globex.md", "# Globex\n\nThings.", store.Frontmatter{
		SourceURL:   "https://globex.example",
		CompanyName: "Globex",
	})
	require.NoError(t, err)

	list, err := c.ListFactsheets(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)

	fs, err := c.GetFactsheet(ctx, "globex.md")
	require.NoError(t, err)
	assert.Equal(t, "Globex", fs.Metadata.CompanyName)
	assert.Contains(t, fs.Content, "Things.")

	var buf bytes.Buffer
	n, err := c.Download(ctx, "globex.md", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "company_name: Globex")

	require.NoError(t, c.DeleteFactsheet(ctx, "globex.md"))
	assert.ErrorIs(t, c.DeleteFactsheet(ctx, "globex.md"), ErrNotFound)

	_, err = c.Download(ctx, "globex.md", io.Discard)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealth(t *testing.T) {
	c, _ := newTestServer(t)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
}

func TestStats(t *testing.T) {
	c, _ := newTestServer(t)

	s, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Factsheets.Total)
	assert.Equal(t, 0, s.TrackedTasks)
}

func TestHistoryDisabled(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.History(context.Background(), 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotImplemented, apiErr.StatusCode)
}

func TestWatchTask(t *testing.T) {
	c, _ := newTestServer(t)
	ctx := context.Background()

	resp, err := c.Generate(ctx, models.GenerateRequest{URL: "https://globex.example"})
	require.NoError(t, err)

	var seen []int
	final, err := c.WatchTask(ctx, resp.TaskID, func(task models.Task) error {
		seen = append(seen, task.Progress)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, models.TaskStatusCompleted, final.Status)
	assert.IsNonDecreasing(t, seen)
}

func TestWatchTaskNotFound(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.WatchTask(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeErrorPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}
