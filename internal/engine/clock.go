package engine

import "sync/atomic"

// Clock is the monotonic logical clock stamping trace events.
//
// Every event carries a strictly increasing seq number from this clock, so
// the order of a run's events is explicit and reproducible without relying
// on wall-clock timestamps.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the engine's strictly sequential design means only one goroutine
// calls Next() in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
