package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rescuekit/autorun/internal/testutil"
)

// Assertion type identifiers.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertLogContains   = "log_contains"
)

// Scenario describes one end-to-end engine run declaratively: the effective
// configuration, the candidate scripts present on the medium, and the
// expected outcome. Scenarios load from YAML files under testdata.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Config holds the autorun scope of the effective configuration
	// document (ar_* keys). A nil map produces an empty scope, which is
	// valid and leaves every option at its default.
	Config map[string]any `yaml:"config,omitempty"`

	// Cmdline is the boot command line content. Empty means no command
	// line file is present, so the document's suffixes stand.
	Cmdline string `yaml:"cmdline,omitempty"`

	// Scripts are the candidate files placed on the scenario's medium.
	Scripts []ScriptFile `yaml:"scripts,omitempty"`

	// Token fixes the run token for deterministic traces and goldens.
	// Defaults to "run-scenario".
	Token string `yaml:"token,omitempty"`

	// LockHeld plants a foreign pid lock before the run, exercising the
	// second-instance back-off path.
	LockHeld bool `yaml:"lock_held,omitempty"`

	Expect     *ExpectClause `yaml:"expect,omitempty"`
	Assertions []Assertion   `yaml:"assertions,omitempty"`
}

// ScriptFile is one candidate on the scenario medium. Without an explicit
// Content, a minimal POSIX script is generated that echoes its name and
// exits with ExitCode.
type ScriptFile struct {
	Name     string `yaml:"name"`
	ExitCode int    `yaml:"exit_code,omitempty"`
	Output   string `yaml:"output,omitempty"`
	Content  string `yaml:"content,omitempty"`
}

// render produces the file content placed on the medium.
func (f ScriptFile) render() string {
	if f.Content != "" {
		return f.Content
	}
	if f.Output != "" {
		s := "#!/bin/sh\necho " + f.Output + "\n"
		if f.ExitCode != 0 {
			s += "exit " + strconv.Itoa(f.ExitCode) + "\n"
		}
		return s
	}
	return testutil.ExitingScript(f.Name, f.ExitCode)
}

// ExpectClause states the outcome a scenario requires. Every field is
// optional; only set fields are checked, so scenarios state exactly what
// they care about.
type ExpectClause struct {
	// Skipped expects the run to not happen at all because another
	// instance held the lock.
	Skipped *bool `yaml:"skipped,omitempty"`

	// Staged is the number of candidates discovered and copied.
	Staged *int `yaml:"staged,omitempty"`

	// Failures is the number of scripts that exited non-zero.
	Failures *int `yaml:"failures,omitempty"`

	// ExitCode is the process exit status the engine reported.
	ExitCode *int `yaml:"exit_code,omitempty"`

	// ScriptsRun is the exact ordered list of base names that executed.
	ScriptsRun []string `yaml:"scripts_run,omitempty"`

	// Aborted expects the run to have stopped early on a failure.
	Aborted *bool `yaml:"aborted,omitempty"`
}

// Assertion is one check against the recorded trace or the script logs.
// The set of meaningful fields depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Event names a trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Fields is a subset match against the event's fields (trace_contains).
	Fields map[string]string `yaml:"fields,omitempty"`

	// Events is an ordered list of event types (trace_order). Events must
	// appear in this order in the trace; others may intervene.
	Events []string `yaml:"events,omitempty"`

	// Count is the exact number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Script and Text select a script's log and a substring it must
	// contain (log_contains).
	Script string `yaml:"script,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// LoadScenario reads and validates a scenario from a YAML file. Unknown
// fields are rejected so typos in scenario files fail loudly instead of
// silently weakening a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks structural requirements after parsing.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario must have a name")
	}
	if s.Description == "" {
		return fmt.Errorf("scenario %q must have a description", s.Name)
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("scenario %q must have an expect clause or at least one assertion", s.Name)
	}

	for i, file := range s.Scripts {
		if file.Name == "" {
			return fmt.Errorf("script %d: name is required", i)
		}
		if file.ExitCode < 0 || file.ExitCode > 255 {
			return fmt.Errorf("script %q: exit_code must be 0-255, got %d", file.Name, file.ExitCode)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks the type-specific required fields.
func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertion %d (trace_contains): event is required", i)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertion %d (trace_order): at least two events are required", i)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertion %d (trace_count): event is required", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertion %d (trace_count): count must be non-negative", i)
		}
	case AssertLogContains:
		if a.Script == "" {
			return fmt.Errorf("assertion %d (log_contains): script is required", i)
		}
		if a.Text == "" {
			return fmt.Errorf("assertion %d (log_contains): text is required", i)
		}
	case "":
		return fmt.Errorf("assertion %d: type is required", i)
	default:
		return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
	}
	return nil
}
