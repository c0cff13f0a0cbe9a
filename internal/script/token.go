package script

import "sync"

// Token is a one-shot cooperative cancellation token. The lifecycle
// controller arms one per execution window; the debug channel fires it; the
// runtime consults it at its next checked point. Firing is idempotent.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

// NewToken returns an unfired token.
func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Interrupt fires the token. Safe to call from any goroutine, more than
// once, and does nothing beyond setting the signal - the contract for
// interrupt-level code.
func (t *Token) Interrupt() {
	t.once.Do(func() { close(t.ch) })
}

// Fired reports whether the token has been fired.
func (t *Token) Fired() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token fires.
func (t *Token) Done() <-chan struct{} { return t.ch }
