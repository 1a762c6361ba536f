package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/scraper"
)

var (
	generateURL        string
	generateCSV        string
	generateSelect     int
	generateProvider   string
	generateModel      string
	generateOutputDir  string
	generateNoProgress bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a factsheet for a company website",
	Long: `Generate a factsheet for one company, given either directly with --url or
picked from a CSV file with --csv and --select.

Without --select, the companies in the CSV file are listed with their
index. The CSV file needs a header row with URL and Industry columns.

Examples:
  factsheet generate --url https://company.com/
  factsheet generate --csv companies.csv
  factsheet generate --csv companies.csv --select 0
  factsheet generate --url company.com --provider ollama --model llama3.1
  factsheet generate --url https://company.com --server http://localhost:8000`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateURL, "url", "", "company website URL")
	generateCmd.Flags().StringVar(&generateCSV, "csv", "", "CSV file with URL and Industry columns")
	generateCmd.Flags().IntVar(&generateSelect, "select", -1, "index (0-based) of the company in the CSV file")
	generateCmd.Flags().StringVarP(&generateProvider, "provider", "p", "", "LLM provider (openai, anthropic, gemini, ollama, bedrock)")
	generateCmd.Flags().StringVarP(&generateModel, "model", "m", "", "LLM model (provider default when empty)")
	generateCmd.Flags().StringVarP(&generateOutputDir, "output-dir", "o", "", "directory for factsheet files (in-process only)")
	generateCmd.Flags().BoolVar(&generateNoProgress, "no-progress", false, "print plain status lines instead of a progress bar")
	generateCmd.MarkFlagsMutuallyExclusive("url", "csv")
	generateCmd.MarkFlagsOneRequired("url", "csv")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	target := generateURL
	if generateCSV != "" {
		companies, err := loadCompanies(generateCSV)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			return fmt.Errorf("no companies loaded from %s", generateCSV)
		}

		if !cmd.Flags().Changed("select") {
			printCompanies(companies)
			return nil
		}
		if generateSelect < 0 || generateSelect >= len(companies) {
			return fmt.Errorf("invalid selection %d, available indices: 0-%d", generateSelect, len(companies)-1)
		}
		target = companies[generateSelect].URL
	}

	target = scraper.NormalizeURL(target)
	if err := scraper.ValidateURL(target); err != nil {
		return err
	}

	if generateOutputDir != "" {
		if serverURL != "" {
			return errors.New("--output-dir cannot be used with --server")
		}
		cfg.OutputDir = generateOutputDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	id, err := b.Submit(ctx, models.GenerateRequest{
		URL:      target,
		Provider: generateProvider,
		Model:    generateModel,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if !generateNoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		return RunTaskProgress(b, id, target)
	}
	return pollTask(ctx, b, id, os.Stdout)
}

func printCompanies(companies []company) {
	fmt.Printf("Companies (%d):\n\n", len(companies))
	for i, c := range companies {
		if c.Industry != "" {
			fmt.Printf("  %d: %s (%s)\n", i, c.URL, c.Industry)
		} else {
			fmt.Printf("  %d: %s\n", i, c.URL)
		}
	}
	fmt.Println("\nUse --select <index> to generate a factsheet for one of them.")
}
