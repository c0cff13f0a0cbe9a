package firmware

import "github.com/google/uuid"

// BootCycle represents one run of the device between power-on or soft
// reset and the next soft reset.
type BootCycle struct {
	// Token identifies this cycle in the boot journal.
	Token string

	// Number counts cycles since power-on, starting at 0.
	Number uint64

	// First marks the very first cycle since power-on. It gates the
	// one-time main script fast path and is cleared by the first soft
	// reset.
	First bool
}

// TokenGenerator produces cycle tokens. Implemented by UUIDv7Generator
// (production) and testutil's fixed generator (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable cycle tokens, so a journal dump
// sorted by token is also sorted by boot time.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FirstCycle builds the power-on cycle.
func FirstCycle(gen TokenGenerator) BootCycle {
	return BootCycle{Token: gen.Generate(), Number: 0, First: true}
}

// Advance is the teardown→init transition: counter incremented, first-cycle
// flag cleared, fresh token.
func (c BootCycle) Advance(gen TokenGenerator) BootCycle {
	return BootCycle{Token: gen.Generate(), Number: c.Number + 1, First: false}
}
