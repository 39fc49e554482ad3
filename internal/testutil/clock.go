// Package testutil provides deterministic helpers for tests: a resettable
// sequence clock and a fixed id generator, so traces and golden files are
// reproducible across runs.
package testutil

import "sync"

// DeterministicClock is a thread-safe, resettable monotonic counter.
//
// Unlike the router's internal clock it can be reset, so the same
// scenario can run repeatedly with identical sequence values.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock starting at 0; the first Next
// returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
