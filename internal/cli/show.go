package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescuekit/autorun/internal/journal"
	"github.com/rescuekit/autorun/internal/script"
	"github.com/rescuekit/autorun/internal/session"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Journal string
}

// ShowResult holds the show command's output.
type ShowResult struct {
	Run script.Run `json:"run"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}
	defaults := session.DefaultPaths()

	cmd := &cobra.Command{
		Use:   "show <token>",
		Short: "Show one recorded run",
		Long: `Show a single recorded run with its per-script records.

Tokens come from the history command or from the run's own log lines.

Examples:
  autorun show 0190b5a2-7c3e-7f10-93d2-6a1f20c4e9aa
  autorun show 0190b5a2-7c3e-7f10-93d2-6a1f20c4e9aa --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", defaults.JournalPath(), "run journal database")

	return cmd
}

func runShow(opts *ShowOptions, token string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	run, err := j.ReadRun(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("no run recorded with token %s", token))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, ShowResult{Run: run})
	}
	return outputShowText(cmd.OutOrStdout(), run)
}

// outputShowText renders one run as human-readable text.
func outputShowText(w io.Writer, run script.Run) error {
	fmt.Fprintf(w, "Run:      %s\n", run.Token)
	if run.Source == "" {
		fmt.Fprintf(w, "Source:   (local default directories)\n")
	} else {
		fmt.Fprintf(w, "Source:   %s (%s)\n", run.Source, run.Kind)
	}
	fmt.Fprintf(w, "Started:  %s\n", run.Started.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Finished: %s\n", run.Finished.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Staged:   %d script(s), %d executed\n", run.Staged, len(run.Records))
	fmt.Fprintf(w, "Exit:     %d (%d failure(s))\n", run.ExitCode, run.Failures)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Scripts ===")
	if len(run.Records) == 0 {
		fmt.Fprintln(w, "  (none executed)")
		return nil
	}
	for i, rec := range run.Records {
		status := fmt.Sprintf("exit %d", rec.ExitCode)
		if rec.Aborted {
			status += "  (aborted run)"
		}
		fmt.Fprintf(w, "  [%d] %-12s %-10s %s\n", i+1, rec.BaseName, status, rec.LogPath)
	}
	return nil
}
