package router

import "sync/atomic"

// clock is a monotonic logical clock stamping envelope sequence numbers.
//
// Sequence numbers, not wall-clock timestamps, order events: they are
// deterministic, replayable and free of clock-skew races. Safe for
// concurrent use, though the hub's drain loop is the only caller in
// practice.
type clock struct {
	seq atomic.Int64
}

// Next returns the next sequence number. Each call returns a unique,
// strictly increasing value.
func (c *clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *clock) Current() int64 {
	return c.seq.Load()
}
