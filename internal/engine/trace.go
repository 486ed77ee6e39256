package engine

import "sync"

// EventType names one milestone in a run's trace.
type EventType string

const (
	EventRunStarted       EventType = "run.started"
	EventConfigLoaded     EventType = "config.loaded"
	EventRunDisabled      EventType = "run.disabled"
	EventSourceClassified EventType = "source.classified"
	EventScriptStaged     EventType = "script.staged"
	EventScriptNormalized EventType = "script.normalized"
	EventScriptStarted    EventType = "script.started"
	EventScriptFinished   EventType = "script.finished"
	EventRunAborted       EventType = "run.aborted"
	EventCleanupDone      EventType = "cleanup.done"
	EventRunFinished      EventType = "run.finished"
)

// TraceEvent is one stamped milestone. Fields hold small string values only;
// map keys marshal in sorted order, so serialized traces are byte-stable and
// suitable for golden comparison.
type TraceEvent struct {
	Seq    int64             `json:"seq"`
	Type   EventType         `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trace is the append-only, sequence-stamped event list describing one run.
//
// Thread-safety is provided for completeness; the engine's sequential design
// means a single goroutine records in practice.
type Trace struct {
	mu     sync.Mutex
	clock  *Clock
	events []TraceEvent
}

// NewTrace creates an empty trace stamped by clock.
func NewTrace(clock *Clock) *Trace {
	return &Trace{
		clock:  clock,
		events: make([]TraceEvent, 0, 64),
	}
}

// Record appends an event stamped with the next sequence number.
func (t *Trace) Record(typ EventType, fields map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{
		Seq:    t.clock.Next(),
		Type:   typ,
		Fields: fields,
	})
}

// Events returns a copy of the recorded events in order. The copy is never
// nil, so callers can marshal it directly.
func (t *Trace) Events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
