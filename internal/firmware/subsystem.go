package firmware

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/debuglink"
	"github.com/obscura-fw/obscura/internal/flashvol"
	"github.com/obscura-fw/obscura/internal/fwimage"
	"github.com/obscura-fw/obscura/internal/memlayout"
	"github.com/obscura-fw/obscura/internal/script"
)

// SystemContext is the explicit mutable state threaded through subsystem
// init, the run loop, and deinit. It is owned by the controller; nothing
// mutates it concurrently.
type SystemContext struct {
	Config  *board.Config
	Layout  *memlayout.Layout
	Volume  *flashvol.Volume
	Channel debuglink.Channel
	Log     *slog.Logger

	// Cold-init results, process lifetime.
	UID     string
	BootRTC time.Time
	Rand    *rand.Rand

	// ScriptBudget bounds the wall time of one script execution or
	// interactive turn. Zero means unbounded.
	ScriptBudget time.Duration

	// Cycle-lifetime resources claimed by subsystems. Teardown clears
	// them; the layout they were carved from is untouched.
	Runtime      *script.Runtime
	DMAWindows   map[string]memlayout.DMAWindow
	FrameBuffer  memlayout.Extent
	FastAlloc    memlayout.Extent
	CodecScratch memlayout.Extent
	Firmware     map[string]*fwimage.Image

	// RecordTurn, installed by the readline subsystem, appends one
	// evaluated interactive line to the session history.
	RecordTurn func(line string)

	// CodecQuality, installed by the codec subsystem, selects the
	// compression quality for a frame of the given size.
	CodecQuality func(frameSize uint64) int
}

// Subsystem is one named unit of hardware bring-up. Init claims its
// resources from the context; Deinit releases them. Both are invoked only
// by the controller thread, and the registry guarantees each runs at most
// once per cycle.
type Subsystem interface {
	Name() string

	// Critical distinguishes subsystems the rest of the system cannot
	// function without (init failure halts) from best-effort ones (init
	// failure degrades and continues).
	Critical() bool

	Init(sc *SystemContext) error
	Deinit(sc *SystemContext) error
}

// Registry holds subsystems in dependency order and records, per cycle,
// the order in which they actually came up, so teardown can run the exact
// reverse.
type Registry struct {
	subsystems []Subsystem
	running    map[string]bool
	order      []string
	log        *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		running: make(map[string]bool),
		log:     log,
	}
}

// Register appends a subsystem. Registration order is the dependency
// order; it never changes after construction.
func (r *Registry) Register(s Subsystem) {
	r.subsystems = append(r.subsystems, s)
}

// InitAll brings every registered subsystem up in order. A subsystem that
// is already running is skipped (idempotent re-init). Non-critical
// failures are logged, reported in degraded, and bring-up continues;
// a critical failure stops immediately and returns the InitError.
func (r *Registry) InitAll(sc *SystemContext) (degraded []*InitError, err error) {
	for _, s := range r.subsystems {
		if r.running[s.Name()] {
			continue
		}
		if ierr := s.Init(sc); ierr != nil {
			ie := &InitError{Subsystem: s.Name(), Critical: s.Critical(), Err: ierr}
			if ie.Critical {
				return degraded, ie
			}
			r.log.Warn("subsystem degraded", "subsystem", s.Name(), "error", ierr)
			degraded = append(degraded, ie)
			continue
		}
		r.running[s.Name()] = true
		r.order = append(r.order, s.Name())
		r.log.Debug("subsystem up", "subsystem", s.Name())
	}
	return degraded, nil
}

// DeinitAll tears subsystems down in the exact reverse of the recorded
// init order. Deinit errors are logged and skipped; teardown always runs
// to completion. Returns the deinit order performed.
func (r *Registry) DeinitAll(sc *SystemContext) []string {
	byName := make(map[string]Subsystem, len(r.subsystems))
	for _, s := range r.subsystems {
		byName[s.Name()] = s
	}

	deinited := make([]string, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		s := byName[name]
		if s == nil || !r.running[name] {
			continue
		}
		if err := s.Deinit(sc); err != nil {
			r.log.Warn("subsystem deinit failed", "subsystem", name, "error", err)
		}
		r.running[name] = false
		deinited = append(deinited, name)
	}
	r.order = r.order[:0]
	return deinited
}

// InitOrder returns a copy of the init order recorded for this cycle.
func (r *Registry) InitOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Running reports whether a named subsystem is currently up.
func (r *Registry) Running(name string) bool {
	return r.running[name]
}
