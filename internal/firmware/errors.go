package firmware

import (
	"errors"
	"fmt"
)

// InitError reports that a named subsystem failed to come up. Critical
// mirrors the subsystem's declaration: a critical failure halts the
// lifecycle, a non-critical one degrades and continues.
type InitError struct {
	Subsystem string
	Critical  bool
	Err       error
}

func (e *InitError) Error() string {
	kind := "degraded"
	if e.Critical {
		kind = "critical"
	}
	return fmt.Sprintf("subsystem %s init failed (%s): %v", e.Subsystem, kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// IsCriticalInit reports whether err is a critical subsystem init failure.
// Uses errors.As to handle wrapped errors.
func IsCriticalInit(err error) bool {
	var ie *InitError
	return errors.As(err, &ie) && ie.Critical
}

// UnrecoverableFault is anything that reached the top of the lifecycle
// uncaught. It is always fatal: the controller stops rather than continue
// in unknown state.
type UnrecoverableFault struct {
	State State
	Err   error
}

func (e *UnrecoverableFault) Error() string {
	return fmt.Sprintf("unrecoverable fault in %s: %v", e.State, e.Err)
}

func (e *UnrecoverableFault) Unwrap() error { return e.Err }

// IsUnrecoverable reports whether err is an UnrecoverableFault.
func IsUnrecoverable(err error) bool {
	var uf *UnrecoverableFault
	return errors.As(err, &uf)
}
