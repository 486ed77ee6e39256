package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rescuekit/autorun/internal/engine"
	"github.com/rescuekit/autorun/internal/journal"
	"github.com/rescuekit/autorun/internal/session"
	"github.com/rescuekit/autorun/internal/source"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigDoc string
	Cmdline   string
	BaseDir   string
	LockFile  string
	Sentinel  string
	Journal   string

	// TokenGenerator allows overriding the run token source (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGenerator engine.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	defaults := session.DefaultPaths()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute autorun scripts once",
		Long: `Execute the configured autorun scripts for this boot.

Loads the effective configuration document, resolves the configured
source, stages the candidate scripts, and runs them strictly one after
another. A second invocation while a run is in progress exits 0 without
doing anything.

The exit status is the number of failed scripts, so 0 means every
script succeeded (or autorun was disabled, or nothing was found).

Example:
  autorun run
  autorun run --base-dir /tmp/autorun --journal "" --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutorun(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigDoc, "config-doc", session.DefaultConfigDoc, "path to the effective configuration document")
	cmd.Flags().StringVar(&opts.Cmdline, "cmdline", session.DefaultCmdline, "path to the boot command line")
	cmd.Flags().StringVar(&opts.BaseDir, "base-dir", defaults.BaseDir, "state directory for staged scripts, logs and mounts")
	cmd.Flags().StringVar(&opts.LockFile, "lock-file", defaults.LockFile, "single-instance lock file")
	cmd.Flags().StringVar(&opts.Sentinel, "sentinel", defaults.Sentinel, "sentinel file that skips the final keypress gate")
	cmd.Flags().StringVar(&opts.Journal, "journal", defaults.JournalPath(), "run journal database (empty disables journaling)")

	return cmd
}

func runAutorun(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	paths := session.Paths{
		BaseDir:  opts.BaseDir,
		LockFile: opts.LockFile,
		Sentinel: opts.Sentinel,
	}
	guard := session.NewGuard(paths,
		session.WithInput(cmd.InOrStdin()),
		session.WithOutput(cmd.OutOrStdout()))
	resolver := source.NewResolver(paths.ScriptsDir(), paths.MountDir())

	engineOpts := []engine.Option{
		engine.WithConfigDoc(opts.ConfigDoc),
		engine.WithCmdline(opts.Cmdline),
		engine.WithConsole(cmd.OutOrStdout()),
	}
	if opts.TokenGenerator != nil {
		engineOpts = append(engineOpts, engine.WithTokenGenerator(opts.TokenGenerator))
	}

	if opts.Journal != "" {
		slog.Debug("opening journal", "path", opts.Journal)
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(j))
	}

	// Setup signal handling. The first SIGINT/SIGTERM cancels the run
	// context; the running script then gets SIGTERM and a grace period.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	eng := engine.New(guard, resolver, engineOpts...)

	run, err := eng.Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "autorun failed", err)
	}
	if run == nil {
		// Another instance holds the lock. Not our turn, not an error.
		fmt.Fprintln(cmd.OutOrStdout(), "autorun already running, nothing to do")
		return nil
	}
	if run.ExitCode != 0 {
		return NewExitError(run.ExitCode, fmt.Sprintf("%d script(s) failed", run.Failures))
	}
	return nil
}
