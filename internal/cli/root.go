// Package cli provides the command-line interface for the factsheet generator.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/factsheet-go/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config and logger
	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	activeBackend backend
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "factsheet",
	Short: "Generate company factsheets from web data using AI",
	Long: `Factsheet fetches a company's website, asks an LLM to summarize it into a
structured Markdown factsheet and stores the result on disk.

Commands run in-process by default. Pass --server (or set
FACTSHEET_SERVER_URL) to use a running factsheet-server instead.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}

		// Keep the terminal quiet unless asked; everything still goes to the log file.
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if activeBackend != nil {
			if err := activeBackend.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to shut down: %v\n", err)
			}
			activeBackend = nil
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "factsheet-server base URL (default: run in-process)")

	// Add subcommands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(factsheetsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(statsCmd)
}

// getBackend returns the backend selected by --server, creating it on first
// use. It is closed after the command finishes.
func getBackend(ctx context.Context) (backend, error) {
	if activeBackend != nil {
		return activeBackend, nil
	}
	b, err := openBackend(ctx, cfg, serverURL, logger)
	if err != nil {
		return nil, err
	}
	activeBackend = b
	return b, nil
}
