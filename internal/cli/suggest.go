package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackrank/pkg/catalog"
	"github.com/matzehuels/stackrank/pkg/stats"
)

type suggestOptions struct {
	ecosystem   string
	limit       int
	jsonOut     bool
	interactive bool
}

// suggestCommand creates the suggest command.
func (c *CLI) suggestCommand() *cobra.Command {
	opts := suggestOptions{ecosystem: string(stats.NPM), limit: catalog.DefaultLimit}

	cmd := &cobra.Command{
		Use:   "suggest <query>",
		Short: "Find package names",
		Long: `Suggest package names matching a query.

npm suggestions come from the npm search service. PyPI suggestions are ranked
locally against the full PyPI project list (falling back to the list of popular
projects), which is downloaded once and cached.

With -i, pick packages from the list and compare them.`,
		Example: `  stackrank suggest reac
  stackrank suggest -e pypi flsk
  stackrank suggest -i -e pypi http`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSuggest(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", opts.ecosystem, "ecosystem to search (npm, pypi)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", opts.limit, "maximum number of suggestions")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print suggestions as JSON")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick packages and compare them")

	return cmd
}

func (c *CLI) runSuggest(ctx context.Context, out io.Writer, query string, opts suggestOptions) error {
	eco, err := stats.ParseEcosystem(opts.ecosystem)
	if err != nil {
		return err
	}

	svc, err := c.newServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Searching %s...", eco))
	if !opts.jsonOut {
		spinner.Start()
	}
	items, err := svc.catalog.Suggest(ctx, eco, query, opts.limit)
	spinner.Stop()
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		printInfo("No %s packages match %q", eco, query)
		return nil
	}
	if !opts.interactive {
		fmt.Fprintln(out, renderSuggestions(items))
		printNextStep("Compare", fmt.Sprintf("stackrank compare %s:%s ...", eco, items[0].Name))
		return nil
	}

	final, err := tea.NewProgram(NewPickerModel(items), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("picker: %w", err)
	}
	picked := final.(PickerModel).Selection()
	if len(picked) == 0 {
		return nil
	}

	args := make([]string, len(picked))
	for i, p := range picked {
		args[i] = string(p.Ecosystem) + ":" + p.Name
	}
	return c.runCompareWith(ctx, out, svc, args, compareOptions{timeout: defaultCompareTimeout})
}

func renderSuggestions(items []catalog.Suggestion) string {
	rows := make([][]string, len(items))
	for i, it := range items {
		extra := ""
		if it.Downloads > 0 {
			extra = formatCompact(it.Downloads)
		}
		rows[i] = []string{it.Name, orMissing(it.Version), extra, truncate(it.Description, 56)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Downloads", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return styleHeader.Padding(0, 1)
			case col == 0:
				return base.Foreground(colorCyan)
			case col == 3:
				return base.Foreground(colorDim)
			}
			return base
		}).
		Render()
}
