package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackrank/pkg/compare"
	"github.com/matzehuels/stackrank/pkg/ecosystem"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/orchestrator"
	"github.com/matzehuels/stackrank/pkg/stats"
)

const defaultCompareTimeout = 60 * time.Second

// compareOptions holds the flags of the compare command.
type compareOptions struct {
	ecosystem string
	jsonOut   bool
	refresh   string
	prune     bool
	timeout   time.Duration
}

// compareCommand creates the compare command.
func (c *CLI) compareCommand() *cobra.Command {
	opts := compareOptions{timeout: defaultCompareTimeout}

	cmd := &cobra.Command{
		Use:   "compare <package>...",
		Short: "Compare packages side by side",
		Long: `Compare npm and PyPI packages on downloads, repository activity and scores.

Packages are given as ecosystem:name. The ecosystem prefix can be omitted when
--ecosystem is set. Registry data and GitHub data are cached separately;
--refresh bypasses the cache for one or both layers.`,
		Example: `  stackrank compare npm:react npm:preact npm:vue
  stackrank compare -e pypi flask django fastapi
  stackrank compare npm:react pypi:flask --refresh github
  stackrank compare npm:react npm:reactt --prune`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompare(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", "", "default ecosystem for unprefixed names (npm, pypi)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the snapshot as JSON")
	cmd.Flags().StringVar(&opts.refresh, "refresh", "", "bypass the cache: registry, github or all")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "drop packages the registry does not know")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultCompareTimeout, "overall fetch timeout")

	return cmd
}

func (c *CLI) runCompare(ctx context.Context, out io.Writer, args []string, opts compareOptions) error {
	if _, err := parseRequests(args, opts.ecosystem); err != nil {
		return err
	}
	svc, err := c.newServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	return c.runCompareWith(ctx, out, svc, args, opts)
}

// runCompareWith is runCompare on already built services.
func (c *CLI) runCompareWith(ctx context.Context, out io.Writer, svc *services, args []string, opts compareOptions) error {
	reqs, err := parseRequests(args, opts.ecosystem)
	if err != nil {
		return err
	}
	var scope orchestrator.Scope
	if opts.refresh != "" {
		if scope, err = orchestrator.ParseScope(opts.refresh); err != nil {
			return err
		}
	}

	snap, waitErr := c.collect(ctx, svc.orch, reqs, scope, opts)
	if waitErr != nil && len(snap.Comparison.Packages) == 0 {
		return waitErr
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return waitErr
	}

	if len(snap.Comparison.Packages) > 0 {
		fmt.Fprintln(out, renderComparison(snap.Comparison))
	}
	printPackageWarnings(snap)
	if waitErr != nil {
		printStillLoading(snap)
		return waitErr
	}
	return reportErrors(snap)
}

// printStillLoading names the packages a timed out comparison left out.
func printStillLoading(snap orchestrator.Snapshot) {
	for _, p := range snap.Packages {
		switch {
		case p.Loading:
			printWarning("%s: still loading, not compared", p.Request)
		case p.SourceHostLoading:
			printWarning("%s: repository data still loading", p.Request)
		}
	}
}

// collect runs a session for reqs and returns its settled snapshot. With
// opts.prune, packages the registry does not know are dropped first. When
// the wait ends early, the snapshot holds whatever had loaded by then and
// the classified error is returned alongside it.
func (c *CLI) collect(ctx context.Context, orch *orchestrator.Orchestrator, reqs []ecosystem.Request, scope orchestrator.Scope, opts compareOptions) (orchestrator.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	prog := newProgress(loggerFromContext(ctx))
	sess := orch.NewSession(ctx, orchestrator.WithRefresh(scope))
	defer sess.Close()
	sess.SetPackages(reqs)

	var spinner *Spinner
	if !opts.jsonOut {
		spinner = newSpinnerWithContext(ctx, fetchProgress(sess.Snapshot()))
		spinner.Start()
	}
	err := waitWithProgress(ctx, sess, spinner)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		snap := sess.Snapshot()
		prog.incomplete("Comparison stopped early", "loaded", len(snap.Comparison.Packages), "requested", len(snap.Packages), "error", err)
		return snap, orchestrator.Classify(err)
	}

	if opts.prune {
		for _, r := range sess.PruneNotFound() {
			if !opts.jsonOut {
				printWarning("Removed %s: not found in the %s registry", r, r.Ecosystem)
			}
		}
	}

	snap := sess.Snapshot()
	prog.done("Compared packages", "loaded", len(snap.Comparison.Packages), "requested", len(snap.Packages))
	return snap, nil
}

// waitWithProgress waits for every fetch of sess to finish, updating
// spinner on each state change.
func waitWithProgress(ctx context.Context, sess *orchestrator.Session, spinner *Spinner) error {
	done := make(chan error, 1)
	go func() { done <- sess.Wait(ctx) }()
	for {
		changed := sess.Changed()
		if spinner != nil {
			spinner.SetMessage(fetchProgress(sess.Snapshot()))
		}
		select {
		case err := <-done:
			return err
		case <-changed:
		}
	}
}

// fetchProgress renders "Fetching 2/3 packages" for a snapshot.
func fetchProgress(snap orchestrator.Snapshot) string {
	done := 0
	for _, p := range snap.Packages {
		if !p.Loading && !p.SourceHostLoading {
			done++
		}
	}
	return fmt.Sprintf("Fetching %d/%d packages", done, len(snap.Packages))
}

// =============================================================================
// Pair Command
// =============================================================================

// pairCommand creates the legacy two-package comparison.
func (c *CLI) pairCommand() *cobra.Command {
	opts := compareOptions{timeout: defaultCompareTimeout}

	cmd := &cobra.Command{
		Use:   "pair <a> <b>",
		Short: "Compare two packages with percentage differences",
		Long: `Compare exactly two packages. Each metric shows which side wins and by how
much, measured from b: (a-b)/b.`,
		Example: `  stackrank pair npm:react npm:preact`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPair(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", "", "default ecosystem for unprefixed names (npm, pypi)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultCompareTimeout, "overall fetch timeout")

	return cmd
}

func (c *CLI) runPair(ctx context.Context, out io.Writer, args []string, opts compareOptions) error {
	reqs, err := parseRequests(args, opts.ecosystem)
	if err != nil {
		return err
	}
	if reqs[0].Key() == reqs[1].Key() {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "cannot compare %s with itself", reqs[0])
	}

	svc, err := c.newServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	snap, err := c.collect(ctx, svc.orch, reqs, 0, opts)
	if err != nil {
		return err
	}
	if err := reportErrors(snap); err != nil {
		return err
	}

	a, _ := snap.Package(reqs[0])
	b, _ := snap.Package(reqs[1])
	res := compare.Compare(a.Stats, b.Stats)

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, renderPair(res))
	printPackageWarnings(snap)
	return nil
}

// =============================================================================
// Rendering
// =============================================================================

func packageLabel(s *stats.PackageStats) string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Ecosystem())
}

// renderComparison renders one column per package and one row per metric.
// Winning values are starred; the others show their distance to the winner.
func renderComparison(res compare.Result) string {
	headers := []string{"Metric"}
	for _, p := range res.Packages {
		headers = append(headers, packageLabel(p))
	}

	type cell struct {
		text   string
		winner bool
	}
	var rows [][]cell

	info := func(label string, value func(*stats.PackageStats) string) {
		row := []cell{{text: label}}
		for _, p := range res.Packages {
			row = append(row, cell{text: value(p)})
		}
		rows = append(rows, row)
	}
	info("Version", func(p *stats.PackageStats) string { return orMissing(p.Version) })
	info("Last publish", func(p *stats.PackageStats) string { return formatAge(p.LastPublish) })

	for _, mc := range res.Metrics {
		row := []cell{{text: mc.Label}}
		for _, e := range mc.Entries {
			text := formatMetric(mc.Metric, e.Value)
			if e.IsWinner {
				text += " " + iconWinner
			} else if d := formatPercentDiff(e.PercentDiff); d != "" {
				text += " (" + d + ")"
			}
			row = append(row, cell{text: text, winner: e.IsWinner})
		}
		rows = append(rows, row)
	}

	wins := res.WinCounts()
	winRow := []cell{{text: "Wins"}}
	best := 0
	for _, w := range wins {
		best = max(best, w)
	}
	for _, w := range wins {
		winRow = append(winRow, cell{text: fmt.Sprintf("%d/%d", w, len(res.Metrics)), winner: w == best && best > 0})
	}
	rows = append(rows, winRow)

	plain := make([][]string, len(rows))
	for i, r := range rows {
		plain[i] = make([]string, len(r))
		for j, c := range r {
			plain[i][j] = c.text
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(plain...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return styleHeader.Padding(0, 1)
			case col == 0:
				return base.Foreground(colorGray)
			case row < len(rows) && col < len(rows[row]) && rows[row][col].winner:
				return StyleWinner.Padding(0, 1)
			}
			return base
		})
	return t.Render()
}

// renderPair renders the legacy two-column view.
func renderPair(res compare.PairResult) string {
	rows := make([][]string, 0, len(res.Metrics))
	for _, m := range res.Metrics {
		a, b := m.A, m.B
		winner := "tie"
		switch m.Winner {
		case compare.WinnerA:
			winner = res.A.Name
		case compare.WinnerB:
			winner = res.B.Name
		}
		rows = append(rows, []string{
			m.Label,
			formatMetric(m.Metric, &a),
			formatMetric(m.Metric, &b),
			fmt.Sprintf("%+.1f%%", m.PercentDiff),
			winner,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Metric", packageLabel(res.A), packageLabel(res.B), "Diff", "Winner").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return styleHeader.Padding(0, 1)
			case col == 0:
				return base.Foreground(colorGray)
			case col == 4:
				return StyleWinner.Padding(0, 1)
			}
			return base
		})
	return t.Render()
}

func orMissing(s string) string {
	if s == "" {
		return iconMissing
	}
	return s
}

// warningText explains a degraded record.
var warningText = map[stats.WarningCode]string{
	stats.WarnGitHubRateLimited:      "GitHub rate limit reached; repository figures may be incomplete",
	stats.WarnGitHubNotFound:         "GitHub repository not found",
	stats.WarnGitHubEnrichmentFailed: "GitHub data unavailable",
	stats.WarnRepositoryUnsupported:  "repository is not hosted on GitHub",
}

func printPackageWarnings(snap orchestrator.Snapshot) {
	for _, p := range snap.Packages {
		if p.Stats == nil {
			continue
		}
		for _, w := range p.Stats.Warnings {
			text, ok := warningText[w.Code]
			if !ok {
				text = string(w.Code)
			}
			printWarning("%s: %s", p.Request, text)
		}
	}
}

// reportErrors prints every package error with its hint. It returns an
// error when a registry fetch failed so the exit status reflects it.
func reportErrors(snap orchestrator.Snapshot) error {
	failed := 0
	hints := map[string]bool{}
	for _, e := range snap.Errors {
		if e.Layer == orchestrator.LayerRegistry {
			failed++
			printError("%s: %s", e.Package, apperrors.UserMessage(e.Err))
		} else {
			printWarning("%s: %s", e.Package, apperrors.UserMessage(e.Err))
		}
		if h := apperrors.Hint(e.Err); h != "" && !hints[h] {
			hints[h] = true
			printDetail("%s", h)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d packages could not be fetched", failed, len(snap.Packages))
	}
	return nil
}

// parseRequests turns "ecosystem:name" arguments into requests. def is the
// ecosystem for unprefixed names.
func parseRequests(args []string, def string) ([]ecosystem.Request, error) {
	var eco stats.Ecosystem
	if def != "" {
		e, err := stats.ParseEcosystem(def)
		if err != nil {
			return nil, err
		}
		eco = e
	}
	reqs := make([]ecosystem.Request, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			r, err := ecosystem.ParseRequest(part, eco)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, r)
		}
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no packages given")
	}
	return reqs, nil
}
