// Package harness runs declarative end-to-end scenarios against the autorun
// engine.
//
// A scenario describes an engine run as data: the effective configuration,
// the candidate scripts present on the medium, and the expected outcome.
// Each scenario executes a real engine in a fresh temporary workspace, so
// the full pipeline runs: configuration loading, suffix derivation, local
// discovery, normalization, sequential execution, and cleanup.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config:
//	  ar_suffixes: "1,2"
//	  ar_ignorefail: true
//	cmdline: "quiet autoruns=7 ro"
//	scripts:
//	  - name: autorun
//	  - name: autorun1
//	    exit_code: 3
//	expect:
//	  staged: 2
//	  failures: 1
//	  exit_code: 1
//	  scripts_run: [autorun, autorun1]
//	assertions:
//	  - type: trace_contains
//	    event: script.finished
//	    fields: { base_name: autorun1, exit_code: "3" }
//	  - type: trace_order
//	    events: [run.started, script.started, run.finished]
//	  - type: trace_count
//	    event: script.started
//	    count: 2
//	  - type: log_contains
//	    script: autorun
//	    text: "running autorun"
//
// # Assertion Types
//
//   - trace_contains: an event of the given type with the given fields
//     (subset match) appears in the trace
//   - trace_order: the given event types appear in order; other events may
//     intervene
//   - trace_count: an event type occurs exactly N times
//   - log_contains: a script's captured log contains the given text
//
// # Deterministic Traces
//
// Scenarios run with a fixed token generator, and golden snapshots rewrite
// workspace paths to a stable placeholder, so a scenario produces the same
// serialized trace on every run. Golden files live under testdata/golden
// and are refreshed with go test -update.
package harness
