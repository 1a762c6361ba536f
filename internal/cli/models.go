package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/factsheet-go/internal/llm"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available for a provider",
	Long: `List the models a provider offers. Ollama models are read from the local
Ollama instance; the other providers use a built-in list.

Examples:
  factsheet models
  factsheet models --provider ollama`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVarP(&modelsProvider, "provider", "p", "", "LLM provider (default: configured provider)")
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	list, err := b.Models(ctx, modelsProvider)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No models found")
		return nil
	}

	printModels(list)
	return nil
}

func printModels(list []llm.ModelInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPROVIDER\tSIZE\tDETAILS")
	for _, m := range list {
		id := m.ID
		if m.Default {
			id += " *"
		}
		size := ""
		if m.Size > 0 {
			size = formatBytes(m.Size)
		}
		details := m.ParameterSize
		if m.QuantizationLevel != "" {
			details += " " + m.QuantizationLevel
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, m.Provider, size, details)
	}
	_ = w.Flush()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
