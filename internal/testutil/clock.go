// Package testutil holds deterministic stand-ins for the controller's
// time and token sources, so scenarios replay byte-identically.
package testutil

import (
	"sync"
	"time"
)

// WallClock is a settable wall clock. Passing its Now to the controller
// pins every journal timestamp; Advance moves time forward explicitly.
//
// All methods are safe for concurrent use.
type WallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewWallClock creates a clock frozen at start.
func NewWallClock(start time.Time) *WallClock {
	return &WallClock{now: start}
}

// Now returns the frozen time.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *WallClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
