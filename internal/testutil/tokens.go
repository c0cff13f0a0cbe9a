package testutil

import (
	"fmt"
	"sync"
)

// CycleTokens generates predictable boot cycle tokens: "cycle-0001",
// "cycle-0002", ... Deterministic tokens keep golden journal dumps and
// transcripts byte-stable across runs.
//
// Safe for concurrent use.
type CycleTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCycleTokens creates a generator with the given prefix; empty means
// "cycle".
func NewCycleTokens(prefix string) *CycleTokens {
	if prefix == "" {
		prefix = "cycle"
	}
	return &CycleTokens{prefix: prefix}
}

// Generate returns the next token in sequence.
func (g *CycleTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
