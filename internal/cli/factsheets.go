package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

var (
	showSection string
	deleteForce bool
)

var factsheetsCmd = &cobra.Command{
	Use:     "factsheets",
	Aliases: []string{"fs"},
	Short:   "Manage stored factsheets",
	Long: `List, show and delete generated factsheets.

Examples:
  factsheet factsheets
  factsheet factsheets show acme_factsheet_20260101_120000.md
  factsheet factsheets show acme_factsheet_20260101_120000.md --section Products
  factsheet factsheets delete acme_factsheet_20260101_120000.md --force`,
	Args: cobra.NoArgs,
	RunE: runListFactsheets,
}

var listFactsheetsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored factsheets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListFactsheets,
}

var showFactsheetCmd = &cobra.Command{
	Use:   "show <filename>",
	Short: "Print a factsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowFactsheet,
}

var deleteFactsheetCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a factsheet",
	Long: `Delete a stored factsheet.
Requires confirmation unless --force is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteFactsheet,
}

func init() {
	showFactsheetCmd.Flags().StringVarP(&showSection, "section", "s", "", "print only the section with this heading")
	deleteFactsheetCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")

	factsheetsCmd.AddCommand(listFactsheetsCmd)
	factsheetsCmd.AddCommand(showFactsheetCmd)
	factsheetsCmd.AddCommand(deleteFactsheetCmd)
}

func runListFactsheets(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	list, err := b.Factsheets(ctx)
	if err != nil {
		return fmt.Errorf("list factsheets: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No factsheets found")
		return nil
	}

	printFactsheets(os.Stdout, list)
	return nil
}

func printFactsheets(out io.Writer, list []models.FactsheetMetadata) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tCOMPANY\tWORDS\tCREATED\tMODEL")
	for _, m := range list {
		model := m.Provider
		if m.Model != "" {
			model += "/" + m.Model
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			m.Filename, m.CompanyName, m.WordCount, m.CreatedAt.Local().Format("2006-01-02 15:04"), model)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d factsheet(s)\n", len(list))
}

func runShowFactsheet(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	if showSection == "" {
		fs, err := b.Factsheet(ctx, name)
		if err != nil {
			return factsheetErr(name, err)
		}
		fmt.Print(fs.Content)
		if !strings.HasSuffix(fs.Content, "\n") {
			fmt.Println()
		}
		return nil
	}

	doc, err := b.Document(ctx, name)
	if err != nil {
		return factsheetErr(name, err)
	}
	section, ok := doc.Section(showSection)
	if !ok {
		return fmt.Errorf("section %q not found, available: %s", showSection, strings.Join(doc.Headings(), ", "))
	}
	fmt.Println(strings.Repeat("#", section.Level) + " " + section.Heading)
	fmt.Println()
	fmt.Println(strings.TrimSpace(section.Content))
	return nil
}

func runDeleteFactsheet(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := context.Background()

	b, err := getBackend(ctx)
	if err != nil {
		return err
	}

	// Confirm deletion
	if !deleteForce {
		fs, err := b.Factsheet(ctx, name)
		if err != nil {
			return factsheetErr(name, err)
		}
		fmt.Printf("About to delete: %s (%s)\n", fs.Metadata.Filename, fs.Metadata.CompanyName)
		fmt.Print("\nContinue? [y/N]: ")

		if !confirm(os.Stdin) {
			fmt.Println("Cancelled")
			return nil
		}
	}

	if err := b.DeleteFactsheet(ctx, name); err != nil {
		return factsheetErr(name, err)
	}
	fmt.Printf("Deleted: %s\n", name)
	return nil
}

func confirm(r io.Reader) bool {
	response, _ := bufio.NewReader(r).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func factsheetErr(name string, err error) error {
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("factsheet not found: %s", name)
	}
	return err
}
