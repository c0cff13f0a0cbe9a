// Package debuglink is the debug/control channel boundary: the transport a
// host-side IDE uses to interrupt running scripts, inject new ones, and
// drive the interactive session.
//
// The controller never sees the wire format. It polls an opaque flag
// surface: "is a script ready", "is a command in flight", and it owns the
// explicit interruption toggle. Transport receive paths honor the
// interrupt-level contract - they only set flags, enqueue short messages,
// or copy small buffers; every state transition happens on the controller's
// thread at its poll points.
package debuglink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Mode selects how interactive turns are read.
type Mode int

const (
	// ModeRaw reads one logical line per turn.
	ModeRaw Mode = iota
	// ModeFriendly is the multi-line prompt negotiated by host tooling.
	ModeFriendly
)

// TurnKind is the outcome of one interactive read.
type TurnKind int

const (
	// TurnLine carries one command line to evaluate.
	TurnLine TurnKind = iota + 1
	// TurnExit means the session asked to terminate.
	TurnExit
	// TurnWake means the read was cut short because channel state changed
	// (typically a remote script arriving); the caller re-polls.
	TurnWake
)

// Channel is the controller-facing surface of the debug link.
type Channel interface {
	// ScriptReady reports whether a complete remote script is pending.
	// Poll point: consumed only by the controller thread.
	ScriptReady() bool

	// TakeScript returns the pending script and clears the ready flag.
	TakeScript() string

	// SetInterruptEnabled opens or closes the interruption window.
	// Requests arriving while the window is closed are dropped.
	// No-op while the toggle is locked.
	SetInterruptEnabled(enabled bool)

	// InterruptEnabled reports the current toggle state.
	InterruptEnabled() bool

	// LockInterruptToggle freezes the toggle in its current position.
	// While locked, SetInterruptEnabled is ignored; the controller uses
	// this around remotely supplied scripts, where interruption must
	// stay available and nothing may close the window mid-run.
	LockInterruptToggle(locked bool)

	// BindInterrupt registers the action an honored interrupt request
	// performs (firing the active cancellation token). nil unbinds.
	BindInterrupt(fn func())

	// Busy reports whether a remote command is currently in progress.
	Busy() bool

	// Settle waits up to bound for the in-flight command to finish.
	// Returns true if the channel went idle within the bound.
	Settle(ctx context.Context, bound time.Duration) bool

	// Mode returns the negotiated interactive mode.
	Mode() Mode

	// ReadTurn blocks for the next interactive turn. Context cancellation
	// breaks the read with TurnWake so the caller can re-poll and observe
	// the cancellation.
	ReadTurn(ctx context.Context) (string, TurnKind)

	// WriteTurn reports one turn's result to the session.
	WriteTurn(result string)

	// WriteFault reports a caught script fault to the session.
	WriteFault(msg string)
}

// State is the shared flag surface every transport drives. It implements
// Channel; transports push into it from their receive goroutines.
type State struct {
	irqEnabled atomic.Bool
	irqLocked  atomic.Bool
	busy       atomic.Bool
	ready      atomic.Bool

	mu          sync.Mutex
	script      string
	interruptFn func()
	mode        Mode

	turns chan turnMsg
	wake  chan struct{}

	// send delivers session output; transports replace it. The default
	// drops output into the log so a headless run still shows results.
	send func(kind byte, text string)

	log *slog.Logger
}

type turnMsg struct {
	line string
	exit bool
}

// NewState builds an idle channel state with no transport attached.
func NewState(log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}
	s := &State{
		turns: make(chan turnMsg, 16),
		wake:  make(chan struct{}, 1),
		log:   log,
	}
	s.send = func(kind byte, text string) {
		s.log.Debug("session output dropped", "kind", kind, "text", text)
	}
	return s
}

// --- Channel (controller side) ---

func (s *State) ScriptReady() bool { return s.ready.Load() }

func (s *State) TakeScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.script
	s.script = ""
	s.ready.Store(false)
	return src
}

func (s *State) SetInterruptEnabled(enabled bool) {
	if s.irqLocked.Load() {
		return
	}
	s.irqEnabled.Store(enabled)
}

func (s *State) InterruptEnabled() bool { return s.irqEnabled.Load() }

func (s *State) LockInterruptToggle(locked bool) { s.irqLocked.Store(locked) }

func (s *State) BindInterrupt(fn func()) {
	s.mu.Lock()
	s.interruptFn = fn
	s.mu.Unlock()
}

func (s *State) Busy() bool { return s.busy.Load() }

func (s *State) Settle(ctx context.Context, bound time.Duration) bool {
	deadline := time.NewTimer(bound)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		if !s.busy.Load() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *State) ReadTurn(ctx context.Context) (string, TurnKind) {
	select {
	case m := <-s.turns:
		if m.exit {
			return "", TurnExit
		}
		return m.line, TurnLine
	case <-s.wake:
		return "", TurnWake
	case <-ctx.Done():
		return "", TurnWake
	}
}

func (s *State) WriteTurn(result string) { s.sender()(FrameResult, result) }

func (s *State) WriteFault(msg string) { s.sender()(FrameFault, msg) }

// sender snapshots the output function under the lock; transports may
// replace it concurrently from their accept/receive goroutines.
func (s *State) sender() func(kind byte, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send
}

// --- transport side ---

// OfferScript stores a complete remote script and marks it ready. Wakes a
// blocked ReadTurn so the controller re-polls.
func (s *State) OfferScript(source string) {
	s.mu.Lock()
	s.script = source
	s.mu.Unlock()
	s.ready.Store(true)
	s.wakeUp()
}

// RequestInterrupt honors or drops an interruption request depending on
// the toggle. Called from transport receive goroutines; the bound action
// must itself be flag-only.
func (s *State) RequestInterrupt() {
	if !s.irqEnabled.Load() {
		return
	}
	s.mu.Lock()
	fn := s.interruptFn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// BeginCommand and EndCommand bracket a remote command in progress.
func (s *State) BeginCommand() { s.busy.Store(true) }
func (s *State) EndCommand()   { s.busy.Store(false) }

// PushLine queues one interactive command line.
func (s *State) PushLine(line string) {
	select {
	case s.turns <- turnMsg{line: line}:
	default:
		s.log.Warn("interactive turn dropped, queue full")
	}
}

// PushExit signals session termination.
func (s *State) PushExit() {
	select {
	case s.turns <- turnMsg{exit: true}:
	default:
	}
}

// SetMode records the negotiated interactive mode.
func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// SetSender installs the transport's output function. Called from
// transport goroutines when a session attaches.
func (s *State) SetSender(fn func(kind byte, text string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.send = fn
	s.mu.Unlock()
}

func (s *State) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
