package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe fake clock for tests.
//
// Each call to Now advances the clock by Step, so timestamps recorded during
// a test are distinct, ordered and identical across runs.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// Epoch is the first instant returned by a new DeterministicClock.
var Epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// NewDeterministicClock creates a clock starting at Epoch that advances one
// second per call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{base: Epoch, step: time.Second}
}

// Now returns the next instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
