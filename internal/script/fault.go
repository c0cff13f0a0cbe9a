package script

import (
	"errors"
	"fmt"
)

// Fault is any failure raised while executing script code: syntax errors,
// uncaught script exceptions, execution-budget overruns, or a debug-channel
// interruption. Faults are always caught at the lifecycle loop boundary and
// reported; they never propagate past the controller.
type Fault struct {
	Script      string // script name, or "<repl>" / "<remote>"
	Message     string
	Interrupted bool
	Err         error
}

func (f *Fault) Error() string {
	if f.Interrupted {
		return fmt.Sprintf("script %s: interrupted", f.Script)
	}
	return fmt.Sprintf("script %s: %s", f.Script, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsInterrupted reports whether err is a fault caused by a debug-channel
// interruption rather than a script failure.
func IsInterrupted(err error) bool {
	f, ok := AsFault(err)
	return ok && f.Interrupted
}
