package engine

import "sync/atomic"

// Clock is the logical clock that stamps run events.
//
// Every state transition in a run gets a strictly increasing seq from the
// run's clock, so an event log sorts the same way every time it is read.
// Wall-clock time is never used for ordering.
//
// Clock is safe for concurrent use, though only the run loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
