package testutil

import (
	"sync"
	"time"
)

// FixedClock is a wall clock that only moves when told to.
//
// Pass clock.Now wherever a func() time.Time is expected so expiry timestamps
// are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at the given Unix millisecond.
func NewFixedClock(unixMs int64) *FixedClock {
	return &FixedClock{now: time.UnixMilli(unixMs)}
}

// Now returns the current frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to the given Unix millisecond.
func (c *FixedClock) Set(unixMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.UnixMilli(unixMs)
}
