// Package client provides a REST client for the factsheet server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

// DefaultURL is used when neither an explicit URL nor FACTSHEET_SERVER_URL is set.
const DefaultURL = "http://localhost:8000"

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to the factsheet REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses FACTSHEET_SERVER_URL env var or defaults to localhost:8000.
// Timeout can be configured via FACTSHEET_CLIENT_TIMEOUT env var (default 30s).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("FACTSHEET_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := 30 * time.Second
	if t := os.Getenv("FACTSHEET_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a JSON response into result (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, data)
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	// Lets server logs be correlated with client-side errors.
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func decodeError(resp *http.Response, data []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
		apiErr.RequestID = body.RequestID
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// =============================================================================
// TYPES
// =============================================================================

// GenerateResponse acknowledges an accepted generation request.
type GenerateResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// BulkItem is the outcome of one URL in a bulk request.
type BulkItem struct {
	URL    string `json:"url"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BulkResponse is the result of a bulk generation request.
type BulkResponse struct {
	Tasks    []BulkItem `json:"tasks"`
	Accepted int        `json:"accepted"`
	Rejected int        `json:"rejected"`
}

// TaskList is a list of task snapshots.
type TaskList struct {
	Tasks []models.Task `json:"tasks"`
	Total int           `json:"total"`
}

// FactsheetList is a list of stored factsheets.
type FactsheetList struct {
	Factsheets []models.FactsheetMetadata `json:"factsheets"`
	Total      int                        `json:"total"`
}

// Health is the server health response.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ModelList lists models for one provider.
type ModelList struct {
	Provider  string          `json:"provider"`
	Providers []string        `json:"providers"`
	Models    []llm.ModelInfo `json:"models"`
}

// FactsheetStats aggregates stored factsheets.
type FactsheetStats struct {
	Total        int   `json:"total"`
	TotalWords   int   `json:"total_words"`
	AverageWords int   `json:"average_words"`
	TotalSize    int64 `json:"total_size"`
	CreatedToday int   `json:"created_today"`
}

// Stats is the server statistics response.
type Stats struct {
	metrics.Snapshot
	ActiveTasks  int            `json:"active_tasks"`
	TrackedTasks int            `json:"tracked_tasks"`
	Factsheets   FactsheetStats `json:"factsheets"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Generate starts factsheet generation and returns the task id.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateBulk starts generation for several URLs.
func (c *Client) GenerateBulk(ctx context.Context, urls []string, provider, model string) (*BulkResponse, error) {
	body := map[string]any{"urls": urls}
	if provider != "" {
		body["provider"] = provider
	}
	if model != "" {
		body["model"] = model
	}
	var out BulkResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate/bulk", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask returns the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns tasks tracked by the server, newest first. An empty
// status lists all of them.
func (c *Client) ListTasks(ctx context.Context, status models.TaskStatus) (*TaskList, error) {
	path := "/api/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out TaskList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns durably recorded tasks.
func (c *Client) History(ctx context.Context, limit int) (*TaskList, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out TaskList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFactsheets returns metadata for every stored factsheet.
func (c *Client) ListFactsheets(ctx context.Context) (*FactsheetList, error) {
	var out FactsheetList
	if err := c.do(ctx, http.MethodGet, "/api/factsheets", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFactsheet returns a factsheet's metadata and Markdown body.
func (c *Client) GetFactsheet(ctx context.Context, name string) (*models.Factsheet, error) {
	var out models.Factsheet
	if err := c.do(ctx, http.MethodGet, "/api/factsheets/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFactsheet removes a factsheet.
func (c *Client) DeleteFactsheet(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/factsheets/"+url.PathEscape(name), nil, nil)
}

// Download copies the raw factsheet file (frontmatter included) to w.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/factsheets/"+url.PathEscape(name)+"/download", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return 0, decodeError(resp, data)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download: %w", err)
	}
	return n, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Models lists models for provider (server default when empty).
func (c *Client) Models(ctx context.Context, provider string) (*ModelList, error) {
	path := "/api/models"
	if provider != "" {
		path += "?provider=" + url.QueryEscape(provider)
	}
	var out ModelList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns server statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchTask streams task snapshots over a websocket until the task is
// finished. onUpdate is called for every snapshot; return an error from it
// to stop watching. The final snapshot is returned.
func (c *Client) WatchTask(ctx context.Context, id string, onUpdate func(models.Task) error) (*models.Task, error) {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/api/tasks/" + url.PathEscape(id) + "/watch")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "Task not found"}
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	var last *models.Task
	for {
		var task models.Task
		if err := conn.ReadJSON(&task); err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last != nil {
				return last, nil
			}
			return last, fmt.Errorf("read message: %w", err)
		}
		last = &task
		if onUpdate != nil {
			if err := onUpdate(task); err != nil {
				return last, err
			}
		}
	}
}
