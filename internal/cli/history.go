package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescuekit/autorun/internal/journal"
	"github.com/rescuekit/autorun/internal/script"
	"github.com/rescuekit/autorun/internal/session"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal    string
	Last       int
	Source     string
	FailedOnly bool
}

// HistoryResult holds the history command's output.
type HistoryResult struct {
	Runs []script.Run `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}
	defaults := session.DefaultPaths()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the journal, newest first.

Each line shows when the run started, where scripts came from, and how
it ended. With --verbose, the individual script results are listed too.

Examples:
  autorun history
  autorun history --last 5 --failed-only
  autorun history --source /dev/sdb1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", defaults.JournalPath(), "run journal database")
	cmd.Flags().IntVar(&opts.Last, "last", 0, "show only the N most recent runs (0 = all)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "show only runs for this configured source")
	cmd.Flags().BoolVar(&opts.FailedOnly, "failed-only", false, "show only runs with failed scripts")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	runs, err := j.ReadRuns(ctx, journal.HistoryFilter{
		Last:       opts.Last,
		Source:     opts.Source,
		FailedOnly: opts.FailedOnly,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, HistoryResult{Runs: runs})
	}
	return outputHistoryText(cmd.OutOrStdout(), runs, opts.Verbose)
}

// outputHistoryText renders runs as human-readable text, newest first.
func outputHistoryText(w io.Writer, runs []script.Run, verbose bool) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %s  scripts=%d failures=%d exit=%d\n",
			run.Started.UTC().Format(time.RFC3339),
			run.Token,
			describeRunSource(run),
			len(run.Records),
			run.Failures,
			run.ExitCode)

		if verbose {
			for _, rec := range run.Records {
				status := fmt.Sprintf("exit %d", rec.ExitCode)
				if rec.Aborted {
					status += " (aborted run)"
				}
				fmt.Fprintf(w, "    %-12s %s\n", rec.BaseName, status)
			}
		}
	}
	return nil
}

func describeRunSource(run script.Run) string {
	if run.Source == "" {
		return string(run.Kind)
	}
	return run.Source
}
