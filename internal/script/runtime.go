// Package script owns the boundary to the embedded scripting VM: arena
// lifecycle, protected execution with fault capture, and cooperative
// interruption. The VM itself (goja) is an external collaborator; nothing
// outside this package touches it directly.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"github.com/obscura-fw/obscura/internal/memlayout"
)

// interruptReason is the sentinel passed to the VM's interrupt mechanism.
const interruptReason = "debug channel interrupt"

// budgetReason marks an interrupt fired by the execution-budget timer, so
// faults from overruns are distinguishable from debug-channel interrupts.
const budgetReason = "execution budget exceeded"

// Runtime is one scripting runtime instance. Its lifetime is exactly one
// boot cycle: created when the runtime arena comes up, swept and discarded
// at soft-reset teardown. Not safe for concurrent use; the single
// foreground control thread is the only executor.
type Runtime struct {
	vm     *goja.Runtime
	arena  memlayout.Extent
	log    *slog.Logger
	budget time.Duration
	swept  bool
}

// NewRuntime builds a fresh VM backed by the heap extent from the
// validated layout. The extent is the arena budget handed to the external
// allocator; the VM never sees addresses outside it.
func NewRuntime(arena memlayout.Extent, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	r := &Runtime{
		vm:    goja.New(),
		arena: arena,
		log:   log,
	}
	r.installConsole()
	return r
}

// Arena returns the heap extent this runtime allocates from.
func (r *Runtime) Arena() memlayout.Extent { return r.arena }

// SetBudget bounds the wall time of each Execute or EvalTurn call. A
// runaway script is interrupted when the budget expires and reported as a
// non-interrupted fault. Zero disables the bound.
func (r *Runtime) SetBudget(d time.Duration) { r.budget = d }

// armBudget starts the budget timer for one execution window. The
// returned stop function must run before the window's ClearInterrupt.
func (r *Runtime) armBudget() func() {
	if r.budget <= 0 {
		return func() {}
	}
	t := time.AfterFunc(r.budget, func() { r.vm.Interrupt(budgetReason) })
	return func() { t.Stop() }
}

// installConsole wires console.log into the structured log, so script
// output lands next to firmware output.
func (r *Runtime) installConsole() {
	console := r.vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		r.log.Info("script output", "text", fmt.Sprint(args...))
		return goja.Undefined()
	})
	_ = r.vm.Set("console", console)
}

// Bind exposes a host object to scripts under the given name. Subsystems
// use this during init to publish their script-visible surface.
func (r *Runtime) Bind(name string, value any) error {
	if r.swept {
		return fmt.Errorf("bind %s: runtime already swept", name)
	}
	return r.vm.Set(name, value)
}

// Execute runs a script to completion under the given cancellation token.
// Any failure comes back as a *Fault; panics from the VM never escape.
// A nil token means the window is not interruptible.
func (r *Runtime) Execute(name, source string, tok *Token) (err error) {
	if r.swept {
		return &Fault{Script: name, Message: "runtime already swept"}
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &Fault{Script: name, Message: fmt.Sprintf("runtime panic: %v", rec)}
		}
	}()

	defer r.vm.ClearInterrupt()
	defer r.armBudget()()
	if tok != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-tok.Done():
				r.vm.Interrupt(interruptReason)
			case <-done:
			}
		}()
	}

	_, runErr := r.vm.RunScript(name, source)
	if runErr != nil {
		return faultFrom(name, runErr)
	}
	return nil
}

// EvalTurn evaluates one interactive turn and renders its result. An empty
// result string means the turn produced no value.
func (r *Runtime) EvalTurn(line string, tok *Token) (string, error) {
	if r.swept {
		return "", &Fault{Script: "<repl>", Message: "runtime already swept"}
	}
	var out string
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = &Fault{Script: "<repl>", Message: fmt.Sprintf("runtime panic: %v", rec)}
			}
		}()
		defer r.vm.ClearInterrupt()
		defer r.armBudget()()
		if tok != nil {
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-tok.Done():
					r.vm.Interrupt(interruptReason)
				case <-done:
				}
			}()
		}
		v, runErr := r.vm.RunScript("<repl>", line)
		if runErr != nil {
			return faultFrom("<repl>", runErr)
		}
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			out = v.String()
		}
		return nil
	}()
	return out, err
}

// Sweep reclaims the arena and tears the VM down. The runtime is unusable
// afterwards; a new one is built on the next cycle.
func (r *Runtime) Sweep() {
	r.vm = nil
	r.swept = true
}

// Swept reports whether the runtime has been torn down.
func (r *Runtime) Swept() bool { return r.swept }

// faultFrom converts a VM error into a *Fault.
func faultFrom(name string, err error) *Fault {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if interrupted.Value() == budgetReason {
			// Budget overruns are the script's own failure, not an
			// external interrupt request.
			return &Fault{Script: name, Message: budgetReason, Err: err}
		}
		return &Fault{Script: name, Message: interruptReason, Interrupted: true, Err: err}
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &Fault{Script: name, Message: exc.Value().String(), Err: err}
	}
	return &Fault{Script: name, Message: err.Error(), Err: err}
}
