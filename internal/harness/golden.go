package harness

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/rescuekit/autorun/internal/engine"
)

// TraceSnapshot captures one scenario's trace for golden comparison. Paths
// under the scenario workspace are rewritten to a stable placeholder so the
// serialized form is identical across runs.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Token        string              `json:"token,omitempty"`
	Trace        []engine.TraceEvent `json:"trace"`
}

// marshalSnapshot serializes a snapshot deterministically: two-space indent,
// no HTML escaping, map keys sorted by encoding/json, trailing newline.
func marshalSnapshot(snapshot TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sanitizedTrace returns the trace with workspace-dependent path prefixes
// replaced by placeholders.
func (r *Result) sanitizedTrace() []engine.TraceEvent {
	if len(r.redactions) == 0 {
		return r.Trace
	}
	out := make([]engine.TraceEvent, len(r.Trace))
	for i, event := range r.Trace {
		if len(event.Fields) == 0 {
			out[i] = event
			continue
		}
		fields := make(map[string]string, len(event.Fields))
		for k, v := range event.Fields {
			for prefix, placeholder := range r.redactions {
				v = strings.ReplaceAll(v, prefix, placeholder)
			}
			fields[k] = v
		}
		out[i] = engine.TraceEvent{Seq: event.Seq, Type: event.Type, Fields: fields}
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the golden file
// named after the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	token := ""
	if result.Summary != nil {
		token = result.Summary.Token
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Token:        token,
		Trace:        result.sanitizedTrace(),
	}
	data, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
