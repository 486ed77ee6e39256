package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescuekit/autorun/internal/engine"
)

// sampleTrace is a short happy-path trace for checker tests.
func sampleTrace() []engine.TraceEvent {
	return []engine.TraceEvent{
		{Seq: 1, Type: engine.EventRunStarted, Fields: map[string]string{"token": "run-1"}},
		{Seq: 2, Type: engine.EventScriptStarted, Fields: map[string]string{"base_name": "autorun"}},
		{Seq: 3, Type: engine.EventScriptFinished, Fields: map[string]string{"base_name": "autorun", "exit_code": "0"}},
		{Seq: 4, Type: engine.EventScriptStarted, Fields: map[string]string{"base_name": "autorun1"}},
		{Seq: 5, Type: engine.EventScriptFinished, Fields: map[string]string{"base_name": "autorun1", "exit_code": "2"}},
		{Seq: 6, Type: engine.EventRunFinished, Fields: map[string]string{"scripts": "2", "failures": "1"}},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceContains,
		Event:  "script.finished",
		Fields: map[string]string{"base_name": "autorun1"},
	}
	assert.NoError(t, assertTraceContains(sampleTrace(), assertion))
}

func TestAssertTraceContains_SubsetMatch(t *testing.T) {
	// Extra event fields are ignored; only asserted keys must match.
	assertion := Assertion{
		Type:  AssertTraceContains,
		Event: "run.finished",
	}
	assert.NoError(t, assertTraceContains(sampleTrace(), assertion))
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	assertion := Assertion{Type: AssertTraceContains, Event: "run.aborted"}

	err := assertTraceContains(sampleTrace(), assertion)
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_contains", assertErr.Type)
	assert.Contains(t, assertErr.Expected, "run.aborted")
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

func TestAssertTraceContains_WrongFieldValue(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceContains,
		Event:  "script.finished",
		Fields: map[string]string{"base_name": "autorun1", "exit_code": "0"},
	}

	err := assertTraceContains(sampleTrace(), assertion)
	require.Error(t, err)
}

func TestAssertTraceOrder_InOrder(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"run.started", "script.started", "run.finished"},
	}
	assert.NoError(t, assertTraceOrder(sampleTrace(), assertion))
}

func TestAssertTraceOrder_RepeatedTypeMatchesNextOccurrence(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"script.started", "script.started", "run.finished"},
	}
	assert.NoError(t, assertTraceOrder(sampleTrace(), assertion))
}

func TestAssertTraceOrder_OutOfOrder(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"run.finished", "run.started"},
	}

	err := assertTraceOrder(sampleTrace(), assertion)
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_order", assertErr.Type)
	assert.Contains(t, assertErr.Actual, "run.started")
}

func TestAssertTraceOrder_MissingEvent(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"run.started", "run.aborted"},
	}

	err := assertTraceOrder(sampleTrace(), assertion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.aborted")
}

func TestAssertTraceOrder_TooManyRepeats(t *testing.T) {
	assertion := Assertion{
		Type:   AssertTraceOrder,
		Events: []string{"script.started", "script.started", "script.started"},
	}

	err := assertTraceOrder(sampleTrace(), assertion)
	require.Error(t, err)
}

func TestAssertTraceCount_Exact(t *testing.T) {
	assertion := Assertion{Type: AssertTraceCount, Event: "script.started", Count: 2}
	assert.NoError(t, assertTraceCount(sampleTrace(), assertion))
}

func TestAssertTraceCount_ZeroOccurrences(t *testing.T) {
	assertion := Assertion{Type: AssertTraceCount, Event: "run.aborted", Count: 0}
	assert.NoError(t, assertTraceCount(sampleTrace(), assertion))
}

func TestAssertTraceCount_Mismatch(t *testing.T) {
	assertion := Assertion{Type: AssertTraceCount, Event: "script.started", Count: 3}

	err := assertTraceCount(sampleTrace(), assertion)
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_count", assertErr.Type)
	assert.Contains(t, assertErr.Expected, "3 occurrences")
	assert.Contains(t, assertErr.Actual, "2 occurrences")
}

func TestAssertLogContains_Found(t *testing.T) {
	logs := map[string]string{"autorun.log": "running autorun\ndone\n"}
	assertion := Assertion{Type: AssertLogContains, Script: "autorun", Text: "done"}
	assert.NoError(t, assertLogContains(logs, assertion))
}

func TestAssertLogContains_TextMissing(t *testing.T) {
	logs := map[string]string{"autorun.log": "running autorun\n"}
	assertion := Assertion{Type: AssertLogContains, Script: "autorun", Text: "absent words"}

	err := assertLogContains(logs, assertion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent words")
}

func TestAssertLogContains_NoLogCaptured(t *testing.T) {
	logs := map[string]string{"autorun.log": "running autorun\n"}
	assertion := Assertion{Type: AssertLogContains, Script: "autorun9", Text: "anything"}

	err := assertLogContains(logs, assertion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log captured for autorun9")
	assert.Contains(t, err.Error(), "autorun.log")
}

func TestAssertionError_MessageIncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     "trace_contains",
		Expected: "event run.aborted",
		Actual:   "not found in trace",
		Trace:    sampleTrace(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_contains")
	assert.Contains(t, msg, "Expected: event run.aborted")
	assert.Contains(t, msg, "[1] run.started token=run-1")
	assert.Contains(t, msg, "[5] script.finished base_name=autorun1 exit_code=2")
}

func TestMatchFields(t *testing.T) {
	actual := map[string]string{"base_name": "autorun", "exit_code": "0"}

	assert.True(t, matchFields(actual, nil))
	assert.True(t, matchFields(actual, map[string]string{"base_name": "autorun"}))
	assert.True(t, matchFields(actual, actual))
	assert.False(t, matchFields(actual, map[string]string{"base_name": "autorun1"}))
	assert.False(t, matchFields(actual, map[string]string{"missing": "x"}))
}
