package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rescuekit/autorun/internal/engine"
)

// AssertionError is returned when an assertion fails. It includes the full
// trace so a failing scenario can be debugged from the message alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []engine.TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s\n", event.Seq, event.Type, formatFields(event.Fields))
		}
	}
	return buf.String()
}

// formatFields renders an event's fields sorted by key, or nothing when the
// event carries none.
func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// applyAssertions evaluates every assertion and records failures on the
// result. Assertions were validated at load time, so an unknown type here
// is a programming error, reported like any other failure.
func applyAssertions(scenario *Scenario, result *Result) {
	for i, assertion := range scenario.Assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertLogContains:
			err = assertLogContains(result.Logs, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			result.AddError(err.Error())
		}
	}
}

// assertTraceContains checks that the trace holds at least one event of the
// named type whose fields include every asserted field (subset match, extra
// fields are ignored).
func assertTraceContains(trace []engine.TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if string(event.Type) == assertion.Event && matchFields(event.Fields, assertion.Fields) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with fields %v", assertion.Event, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the named event types appear in the given
// order. Matching is by subsequence, so other events may intervene and a
// repeated type matches its next occurrence after the previous match.
func assertTraceOrder(trace []engine.TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Events {
		found := false
		for ; pos < len(trace); pos++ {
			if string(trace[pos].Type) == want {
				found = true
				pos++
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("event %s not found in remaining trace", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the named event type occurs exactly Count
// times.
func assertTraceCount(trace []engine.TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if string(event.Type) == assertion.Event {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertLogContains checks that the named script's captured log contains the
// asserted text.
func assertLogContains(logs map[string]string, assertion Assertion) error {
	name := assertion.Script + engine.LogSuffix
	content, ok := logs[name]
	if !ok {
		captured := make([]string, 0, len(logs))
		for k := range logs {
			captured = append(captured, k)
		}
		sort.Strings(captured)
		return &AssertionError{
			Type:     AssertLogContains,
			Expected: fmt.Sprintf("log %s containing %q", name, assertion.Text),
			Actual:   fmt.Sprintf("no log captured for %s (have %v)", assertion.Script, captured),
		}
	}
	if !strings.Contains(content, assertion.Text) {
		return &AssertionError{
			Type:     AssertLogContains,
			Expected: fmt.Sprintf("log %s containing %q", name, assertion.Text),
			Actual:   fmt.Sprintf("log content: %q", content),
		}
	}
	return nil
}

// matchFields checks that every expected field is present with an equal
// value. Extra fields in the event are ignored.
func matchFields(actual, expected map[string]string) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
