package store

import (
	"sync"
	"time"
)

// Clock is the only source of "now" for the coordination state. All stored
// timestamps, claim TTLs, and liveness derivations read through it so tests
// can drive expiry deterministically.
type Clock interface {
	// NowMs returns wall-clock milliseconds since the Unix epoch.
	NowMs() int64
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// NowMs implements Clock.
func (SystemClock) NowMs() int64 { return time.Now().UnixMilli() }

// ManualClock is a settable clock for tests.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a ManualClock starting at now.
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

// NowMs implements Clock.
func (c *ManualClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d.Milliseconds()
	c.mu.Unlock()
}

// Set jumps the clock to now.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
