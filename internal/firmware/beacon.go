package firmware

import (
	"context"
	"log/slog"
	"time"
)

// Indicator is the visible fault output, an LED on hardware.
type Indicator interface {
	Set(on bool)
}

// Pattern is a repeating on/off sequence: even indices are lit phases,
// odd indices dark phases. The two fault classes use patterns a person
// can tell apart at a glance.
type Pattern []time.Duration

var (
	// PatternConfigFault signals a board definition or layout error:
	// rapid double blink, long pause.
	PatternConfigFault = Pattern{
		100 * time.Millisecond, 100 * time.Millisecond,
		100 * time.Millisecond, 700 * time.Millisecond,
	}

	// PatternUnrecoverable signals an uncaught top-level fault: slow
	// even blink.
	PatternUnrecoverable = Pattern{
		500 * time.Millisecond, 500 * time.Millisecond,
	}
)

// Beacon drives a repeating fault indication. It replaces a process exit
// code on hardware with no supervising OS: once entered, the device does
// nothing but blink until power-cycled.
type Beacon struct {
	ind     Indicator
	pattern Pattern
	log     *slog.Logger
}

// NewBeacon builds a beacon for one fault class.
func NewBeacon(ind Indicator, pattern Pattern, log *slog.Logger) *Beacon {
	if log == nil {
		log = slog.Default()
	}
	return &Beacon{ind: ind, pattern: pattern, log: log}
}

// Run blinks the pattern until ctx is cancelled. It never returns on its
// own; the context exists so tests and a host-side simulator can stop it.
func (b *Beacon) Run(ctx context.Context) {
	b.log.Error("entering fault beacon")
	for i := 0; ; i = (i + 1) % len(b.pattern) {
		b.ind.Set(i%2 == 0)
		select {
		case <-ctx.Done():
			b.ind.Set(false)
			return
		case <-time.After(b.pattern[i]):
		}
	}
}
