// Package clock supplies the timestamps written into store records.
package clock

import (
	"sync"
	"time"
)

// Precision is the resolution of record timestamps. BSON dates carry
// milliseconds, so both store backends round to that.
const Precision = time.Millisecond

// Clock provides an abstraction for time operations to enable deterministic testing.
type Clock interface {
	// Now returns the current time in UTC at Precision.
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// NewRealClock creates a new RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}

// FakeClock implements Clock with a controllable time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t.UTC().Truncate(Precision)}
}

// Now returns the current fake time, then advances it by the configured
// step so successive records get distinct timestamps.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Set updates the fixed time.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC().Truncate(Precision)
}

// Advance moves the fixed time forward by the given duration.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Tick makes every call to Now advance the clock by d.
func (c *FakeClock) Tick(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}
