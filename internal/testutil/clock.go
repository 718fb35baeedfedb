package testutil

import (
	"sync"
	"time"
)

// Clock is a controllable wall clock for tests.
//
// With a non-zero step every Now call moves time forward by step, which keeps
// timestamps strictly increasing for newest-first queries.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock starts a clock at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// NewSteppingClock starts a clock at now that ticks by step on every read.
func NewSteppingClock(now time.Time, step time.Duration) *Clock {
	return &Clock{now: now, step: step}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
