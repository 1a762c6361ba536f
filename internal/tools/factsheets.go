package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/factsheet-go/internal/store"
)

// ListFactsheetsInput defines the input schema for the list_factsheets tool.
type ListFactsheetsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum results (default 20)"`
}

// GetFactsheetInput defines the input schema for the get_factsheet tool.
type GetFactsheetInput struct {
	Filename string `json:"filename" jsonschema:"required,Factsheet filename from list_factsheets"`
	Section  string `json:"section,omitempty" jsonschema:"Only return the section with this heading"`
}

// DeleteFactsheetInput defines the input schema for the delete_factsheet tool.
type DeleteFactsheetInput struct {
	Filename string `json:"filename" jsonschema:"required,Factsheet filename to delete"`
}

// NewListFactsheetsHandler creates the list_factsheets tool handler.
func NewListFactsheetsHandler(deps *Dependencies) mcp.ToolHandlerFor[ListFactsheetsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListFactsheetsInput) (
		*mcp.CallToolResult, any, error,
	) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}

		list, err := deps.Store.List(ctx)
		if err != nil {
			deps.Logger.Error("list factsheets failed", "error", err)
			return ErrorResult("Failed to list factsheets", "Check the output directory"), nil, nil
		}
		if len(list) == 0 {
			return TextResult("No factsheets found"), nil, nil
		}

		items := make([]string, 0, min(limit, len(list)))
		for _, m := range list[:min(limit, len(list))] {
			items = append(items, fmt.Sprintf("- %s: %s (%d words, %s)",
				m.Filename, m.CompanyName, m.WordCount, m.CreatedAt.Format("2006-01-02 15:04")))
		}
		header := fmt.Sprintf("Found %d factsheets", len(list))
		return TextResult(header + "\n" + FormatResults(items)), nil, nil
	}
}

// NewGetFactsheetHandler creates the get_factsheet tool handler.
func NewGetFactsheetHandler(deps *Dependencies) mcp.ToolHandlerFor[GetFactsheetInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetFactsheetInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Filename == "" {
			return ErrorResult("filename is required", "Use list_factsheets to find one"), nil, nil
		}

		if input.Section == "" {
			fs, err := deps.Store.Read(ctx, input.Filename)
			if err != nil {
				return storeError(deps, input.Filename, err), nil, nil
			}
			return TextResult(fs.Content), nil, nil
		}

		doc, err := deps.Store.Document(ctx, input.Filename)
		if err != nil {
			return storeError(deps, input.Filename, err), nil, nil
		}
		section, ok := doc.Section(input.Section)
		if !ok {
			return ErrorResult("Section not found: "+input.Section,
				"Available sections: "+strings.Join(doc.Headings(), ", ")), nil, nil
		}
		return TextResult(strings.TrimSpace(section.Content)), nil, nil
	}
}

// NewDeleteFactsheetHandler creates the delete_factsheet tool handler.
// Deleting is not idempotent: unknown filenames are reported.
func NewDeleteFactsheetHandler(deps *Dependencies) mcp.ToolHandlerFor[DeleteFactsheetInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteFactsheetInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Filename == "" {
			return ErrorResult("filename is required", ""), nil, nil
		}
		if err := deps.Store.Delete(ctx, input.Filename); err != nil {
			return storeError(deps, input.Filename, err), nil, nil
		}
		deps.Logger.Info("factsheet deleted", "filename", input.Filename)
		return TextResult(fmt.Sprintf("Factsheet %s deleted successfully", input.Filename)), nil, nil
	}
}

func storeError(deps *Dependencies, name string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
		return ErrorResult("Factsheet not found: "+name, "Use list_factsheets to see available files")
	}
	deps.Logger.Error("factsheet store failed", "filename", name, "error", err)
	return ErrorResult("Failed to access factsheet", err.Error())
}
