package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_factsheet",
		Description: "Start generating a factsheet for a company website. Returns a task ID; set wait to block until it finishes",
	}, NewGenerateHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_status",
		Description: "Get status, progress and result of a factsheet generation task",
	}, NewTaskStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_factsheets",
		Description: "List stored factsheets, newest first",
	}, NewListFactsheetsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_factsheet",
		Description: "Read a stored factsheet by filename, optionally only one section",
	}, NewGetFactsheetHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_factsheet",
		Description: "Delete a stored factsheet by filename",
	}, NewDeleteFactsheetHandler(deps))
}
