package firmware

import "sync/atomic"

// Clock is the controller's monotonic logical clock. Every journal record
// is stamped with a strictly increasing seq from it, so record order never
// depends on wall time.
//
// Safe for concurrent use, though the controller's single-thread design
// means only one goroutine normally calls Next.
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the latest issued sequence number.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
