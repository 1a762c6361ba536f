package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded generation tasks",
	Long: `Show tasks from the persistent task history, newest first.

Requires FACTSHEET_HISTORY_BACKEND (surreal, redis or postgres) on the
machine that runs the tasks.

Examples:
  factsheet history
  factsheet history --limit 10 --server http://localhost:8000`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of tasks to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	tasks, err := b.History(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No recorded tasks")
		return nil
	}

	printTaskTable(os.Stdout, tasks)
	return nil
}
