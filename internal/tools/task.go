package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/factsheet-go/internal/service"
)

// TaskStatusInput defines the input schema for the task_status tool.
type TaskStatusInput struct {
	TaskID string `json:"task_id" jsonschema:"required,Task ID returned by generate_factsheet"`
}

// NewTaskStatusHandler creates the task_status tool handler.
func NewTaskStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[TaskStatusInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TaskStatusInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.TaskID == "" {
			return ErrorResult("task_id is required", ""), nil, nil
		}

		task, err := deps.Generator.Status(input.TaskID)
		if errors.Is(err, service.ErrTaskNotFound) {
			return ErrorResult("Task not found: "+input.TaskID, "Tasks are kept in memory and expire after completion"), nil, nil
		}
		if err != nil {
			return ErrorResult("Failed to get task", err.Error()), nil, nil
		}
		return taskResult(task), nil, nil
	}
}
