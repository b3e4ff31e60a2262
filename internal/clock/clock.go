// Package clock abstracts the wall clock so timestamps synthesized on the
// client (optimistic message and resolution times) are deterministic in tests.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Production code injects Real(); tests
// inject Fake() and move time explicitly.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the system clock.
func Real() Clock { return realClock{} }

// FakeClock is a Clock that only moves when told to.
// FakeClock is safe for concurrent use by multiple goroutines.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock initialized to the given time.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
