package harness

import (
	"github.com/rescuekit/autorun/internal/engine"
	"github.com/rescuekit/autorun/internal/script"
)

// Result is the outcome of running one scenario. Pass reflects the expect
// clause and every assertion; Errors lists each check that did not hold.
type Result struct {
	Pass bool `json:"pass"`

	// Summary is the engine's run summary. Nil when the run was skipped
	// because another instance held the lock.
	Summary *script.Run `json:"summary,omitempty"`

	// Trace is the engine's recorded event sequence.
	Trace []engine.TraceEvent `json:"trace"`

	// Console is everything the scripts wrote to the live console.
	Console string `json:"console,omitempty"`

	// Logs maps a script's log file name (base name plus ".log") to its
	// content, captured before the scenario workspace is removed.
	Logs map[string]string `json:"logs,omitempty"`

	Errors []string `json:"errors,omitempty"`

	// redactions rewrites workspace-dependent path prefixes in trace
	// fields to stable placeholders for golden comparison.
	redactions map[string]string
}

// NewResult creates a Result in the passing state; checks flip it.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.TraceEvent{},
		Logs:   map[string]string{},
		Errors: []string{},
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
