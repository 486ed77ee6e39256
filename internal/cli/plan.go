package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescuekit/autorun/internal/config"
	"github.com/rescuekit/autorun/internal/session"
	"github.com/rescuekit/autorun/internal/source"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	ConfigDoc string
	Cmdline   string
	BaseDir   string
}

// PlanResult is the plan command's output: the loaded configuration plus
// the transport plan a run would follow.
type PlanResult struct {
	Disabled      bool        `json:"disabled"`
	NoWait        bool        `json:"no_wait"`
	NoDelete      bool        `json:"no_delete"`
	IgnoreFailure bool        `json:"ignore_failure"`
	Suffixes      []string    `json:"suffixes"`
	Plan          source.Plan `json:"plan"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}
	defaults := session.DefaultPaths()

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do",
		Long: `Show what a run would do, without doing any of it.

Loads the effective configuration document and the boot command line the
same way run does, then prints the candidate script names and where they
would be looked for. Nothing is mounted, fetched, staged, or executed.

Example:
  autorun plan
  autorun plan --config-doc ./effective-config.json --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigDoc, "config-doc", session.DefaultConfigDoc, "path to the effective configuration document")
	cmd.Flags().StringVar(&opts.Cmdline, "cmdline", session.DefaultCmdline, "path to the boot command line")
	cmd.Flags().StringVar(&opts.BaseDir, "base-dir", defaults.BaseDir, "state directory a run would use")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigDoc, opts.Cmdline)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot load configuration", err)
	}

	paths := session.DefaultPaths()
	paths.BaseDir = opts.BaseDir
	resolver := source.NewResolver(paths.ScriptsDir(), paths.MountDir())

	result := PlanResult{
		Disabled:      cfg.Disabled,
		NoWait:        cfg.NoWait,
		NoDelete:      cfg.NoDelete,
		IgnoreFailure: cfg.IgnoreFailure,
		Suffixes:      cfg.SuffixList(),
		Plan:          resolver.Plan(cfg),
	}

	if opts.Format == "json" {
		return outputJSON(cmd, result)
	}
	return outputPlanText(cmd.OutOrStdout(), result)
}

// outputPlanText renders the plan as human-readable text.
func outputPlanText(w io.Writer, result PlanResult) error {
	if result.Disabled {
		fmt.Fprintln(w, "autorun is disabled, a run would do nothing")
		return nil
	}

	fmt.Fprintf(w, "Source: %s\n", describeSource(result.Plan))
	fmt.Fprintf(w, "Kind:   %s\n", result.Plan.Kind)
	if result.Plan.MountSpec != "" {
		fs := result.Plan.Filesystem
		if fs == "" {
			fs = "auto"
		}
		fmt.Fprintf(w, "Mount:  %s (type %s", result.Plan.MountSpec, fs)
		if len(result.Plan.MountOpts) > 0 {
			fmt.Fprintf(w, ", options %s", strings.Join(result.Plan.MountOpts, ","))
		}
		fmt.Fprintln(w, ")")
	}
	if result.Plan.Attempts > 0 {
		fmt.Fprintf(w, "Fetch:  up to %d round(s)\n", result.Plan.Attempts)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Candidates ===")
	for _, name := range result.Plan.Candidates {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Probes ===")
	if len(result.Plan.Probes) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, probe := range result.Plan.Probes {
			fmt.Fprintf(w, "  %s\n", probe)
		}
	}

	var notes []string
	if result.IgnoreFailure {
		notes = append(notes, "failures would not stop the run")
	}
	if result.NoDelete {
		notes = append(notes, "staged copies would be kept")
	}
	if result.NoWait {
		notes = append(notes, "no keypress gate at the end")
	}
	if len(notes) > 0 {
		fmt.Fprintln(w)
		for _, note := range notes {
			fmt.Fprintf(w, "Note: %s\n", note)
		}
	}
	return nil
}

// describeSource names the configured source, or the local default
// directories when none is set.
func describeSource(p source.Plan) string {
	if p.Source == "" {
		return "(local default directories)"
	}
	return p.Source
}
