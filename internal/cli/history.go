package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fidelity/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Scenario string
}

// RunDetail is one run with its comparisons.
type RunDetail struct {
	Run         store.Run          `json:"run"`
	Comparisons []store.Comparison `json:"comparisons"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded with run --history.

Without arguments, lists the latest runs. With a run ID, shows every
comparison of that run. With --scenario, shows how one scenario's
comparisons changed across the latest runs.

Examples:
  fidelity history --db ./fidelity.db
  fidelity history --db ./fidelity.db 01968a6e-2f0c-7c3e-9d4e-6c1f3b2a9e10
  fidelity history --db ./fidelity.db --scenario khronos-DamagedHelmet --limit 5`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show the history of one scenario")

	return cmd
}

func runHistory(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Open would create a missing database.
	if _, err := os.Stat(opts.Database); err != nil {
		if outErr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case runID != "":
		run, err := st.GetRun(ctx, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			if outErr := formatter.Error(ErrCodeNotFound, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "read run", err)
		}
		comparisons, err := st.RunComparisons(ctx, runID)
		if err != nil {
			return WrapExitError(ExitCommandError, "read comparisons", err)
		}
		if opts.Format == "json" {
			return formatter.Success(RunDetail{Run: run, Comparisons: comparisons})
		}
		writeRuns(formatter.Writer, []store.Run{run})
		fmt.Fprintln(formatter.Writer)
		writeComparisons(formatter.Writer, comparisons, false)
		return nil

	case opts.Scenario != "":
		comparisons, err := st.ScenarioHistory(ctx, opts.Scenario, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "read scenario history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(comparisons)
		}
		if len(comparisons) == 0 {
			fmt.Fprintf(formatter.Writer, "No runs recorded for scenario %s.\n", opts.Scenario)
			return nil
		}
		writeComparisons(formatter.Writer, comparisons, true)
		return nil

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		writeRuns(formatter.Writer, runs)
		return nil
	}
}

func writeRuns(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED\tCONFIG")
	for _, r := range runs {
		hash := r.ConfigHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Passed, r.Failed, hash)
	}
	tw.Flush()
}

func writeComparisons(w io.Writer, comparisons []store.Comparison, withRun bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withRun {
		fmt.Fprint(tw, "RUN\t")
	}
	fmt.Fprintln(tw, "SCENARIO\tGOLDEN\tSTATUS\tMATCHING\tMEAN\tNON-MATCHING\tERROR")
	for _, c := range comparisons {
		if withRun {
			fmt.Fprintf(tw, "%s\t", c.RunID)
		}
		matching, mean, notMatching := "-", "-", "-"
		if c.Analysis != nil {
			matching = percent(c.Analysis.Matching)
			mean = percent(c.Analysis.AverageDistance)
			notMatching = percent(c.Analysis.NotMatchingAverageDistance)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Slug, c.Golden, c.Status, matching, mean, notMatching, c.Code)
	}
	tw.Flush()
}
