package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/factsheet-go/internal/client"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show runtime statistics of a running factsheet-server: task counts,
stage timings, token usage and stored factsheets.

Examples:
  factsheet stats --server http://localhost:8000`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	if serverURL == "" {
		return errors.New("stats needs a running server, pass --server or set FACTSHEET_SERVER_URL")
	}

	stats, err := client.New(serverURL).Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(stats *client.Stats) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)

	fmt.Printf("\nTasks:\n")
	fmt.Printf("  Submitted: %d, Completed: %d, Failed: %d\n",
		stats.Tasks.Submitted, stats.Tasks.Completed, stats.Tasks.Failed)
	fmt.Printf("  Active: %d, Tracked: %d\n", stats.ActiveTasks, stats.TrackedTasks)

	if stats.Fetch != nil {
		fmt.Printf("\nFetch:\n")
		printOpStats(stats.Fetch)
	}

	if stats.Compose != nil {
		fmt.Printf("\nCompose:\n")
		printOpStats(stats.Compose)
	}

	if stats.LLMGenerate != nil {
		fmt.Printf("\nLLM Generate:\n")
		printOpStats(stats.LLMGenerate)
		printTokenStats(stats.LLMGenerate)
	}

	if stats.Persist != nil {
		fmt.Printf("\nPersist:\n")
		printOpStats(stats.Persist)
	}

	fs := stats.Factsheets
	fmt.Printf("\nFactsheets:\n")
	fmt.Printf("  Total: %d, Created today: %d\n", fs.Total, fs.CreatedToday)
	fmt.Printf("  Words: %d total, avg %d\n", fs.TotalWords, fs.AverageWords)
	fmt.Printf("  Size: %s\n", formatBytes(fs.TotalSize))
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	if op.MinInputTokens != nil && op.MaxInputTokens != nil {
		fmt.Printf(", min %d, max %d", *op.MinInputTokens, *op.MaxInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	if op.MinOutputTokens != nil && op.MaxOutputTokens != nil {
		fmt.Printf(", min %d, max %d", *op.MinOutputTokens, *op.MaxOutputTokens)
	}
	fmt.Println()
}
