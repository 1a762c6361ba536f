package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List or inspect generation tasks",
	Long: `List the generation tasks known to the server or inspect one by ID.

Tasks live in memory, so this is mostly useful together with --server.

Examples:
  factsheet tasks --server http://localhost:8000
  factsheet tasks 3f2a... --server http://localhost:8000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	// If task ID provided, show that specific task
	if len(args) == 1 {
		task, err := b.Task(ctx, args[0])
		if err != nil {
			if errors.Is(err, errNotFound) {
				return fmt.Errorf("task not found: %s", args[0])
			}
			return fmt.Errorf("get task: %w", err)
		}
		printTask(os.Stdout, task)
		return nil
	}

	tasks, err := b.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		if !b.Remote() {
			fmt.Println("Tasks are kept in memory; use --server to list a running server's tasks.")
		}
		return nil
	}
	printTaskTable(os.Stdout, tasks)
	return nil
}

func printTaskTable(w io.Writer, tasks []models.Task) {
	fmt.Fprintf(w, "%-36s %-11s %-8s %-9s %s\n", "ID", "STATUS", "PROGRESS", "CREATED", "URL")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------")

	for _, t := range tasks {
		created := t.CreatedAt.Local().Format("15:04:05")
		fmt.Fprintf(w, "%-36s %-11s %7d%% %-9s %s\n", t.ID, t.Status, t.Progress, created, t.URL)
	}
}

func printTask(w io.Writer, t *models.Task) {
	fmt.Fprintf(w, "Task: %s\n", t.ID)
	fmt.Fprintf(w, "  URL: %s\n", t.URL)
	fmt.Fprintf(w, "  Status: %s\n", t.Status)
	fmt.Fprintf(w, "  Progress: %d%%\n", t.Progress)
	if t.Message != "" {
		fmt.Fprintf(w, "  Message: %s\n", t.Message)
	}
	if t.Provider != "" {
		fmt.Fprintf(w, "  Model: %s/%s\n", t.Provider, t.Model)
	}
	fmt.Fprintf(w, "  Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", t.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Duration: %s\n", t.CompletedAt.Sub(t.CreatedAt).Round(time.Second))
	}

	if t.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", t.Error)
	}

	if t.Result != nil {
		fmt.Fprintln(w, "\nResult:")
		fmt.Fprint(w, formatResult(t))
	}
}
