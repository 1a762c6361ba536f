package tools

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/scraper"
	"github.com/raphaelgruber/factsheet-go/internal/service"
)

// maxWait caps how long generate_factsheet blocks when wait is set.
const maxWait = 5 * time.Minute

// GenerateInput defines the input schema for the generate_factsheet tool.
type GenerateInput struct {
	URL      string `json:"url" jsonschema:"required,Company website URL; https:// is added when missing"`
	Provider string `json:"provider,omitempty" jsonschema:"LLM provider: openai, anthropic, gemini, ollama or bedrock"`
	Model    string `json:"model,omitempty" jsonschema:"Model name, provider default when empty"`
	Wait     bool   `json:"wait,omitempty" jsonschema:"Block until the task completes or fails"`
}

// NewGenerateHandler creates the generate_factsheet tool handler.
func NewGenerateHandler(deps *Dependencies) mcp.ToolHandlerFor[GenerateInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.URL == "" {
			return ErrorResult("URL is required", "Provide the company website, e.g. https://example.com"), nil, nil
		}

		target := scraper.NormalizeURL(input.URL)
		if err := scraper.ValidateURL(target); err != nil {
			return ErrorResult("Invalid URL", "Use an absolute http(s) URL such as https://example.com"), nil, nil
		}

		id, err := deps.Generator.Submit(ctx, models.GenerateRequest{
			URL:      target,
			Provider: input.Provider,
			Model:    input.Model,
		})
		if err != nil {
			if errors.Is(err, models.ErrInvalidURL) {
				return ErrorResult("Invalid URL", "Use an absolute http(s) URL"), nil, nil
			}
			deps.Logger.Error("submit failed", "url", input.URL, "error", err)
			return ErrorResult("Failed to start generation", err.Error()), nil, nil
		}
		deps.Logger.Info("factsheet generation started", "task_id", id, "url", input.URL)

		if !input.Wait {
			task, err := deps.Generator.Status(id)
			if err != nil {
				return ErrorResult("Task disappeared", "Retry the request"), nil, nil
			}
			return taskResult(task), nil, nil
		}

		task, err := waitForTask(ctx, deps.Generator.Registry(), id)
		if err != nil {
			return ErrorResult("Stopped waiting for task "+id, "Poll it with task_status"), nil, nil
		}
		return taskResult(task), nil, nil
	}
}

// waitForTask blocks until the task is terminal, ctx is done or maxWait passes.
func waitForTask(ctx context.Context, reg *service.Registry, id string) (models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	updates, stop, err := reg.Watch(id)
	if err != nil {
		return models.Task{}, err
	}
	defer stop()

	var last models.Task
	for {
		select {
		case t, ok := <-updates:
			if !ok {
				return last, nil
			}
			last = t
			if t.Status.IsTerminal() {
				return t, nil
			}
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

// taskResult reports failed tasks as tool errors so the model notices.
func taskResult(t models.Task) *mcp.CallToolResult {
	if t.Status == models.TaskStatusFailed {
		return ErrorResult("Generation failed: "+t.Error, "Check the URL or try another provider")
	}
	return JSONResult(t)
}
