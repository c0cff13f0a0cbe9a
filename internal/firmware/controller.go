package firmware

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mathrand "math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/debuglink"
	"github.com/obscura-fw/obscura/internal/flashvol"
	"github.com/obscura-fw/obscura/internal/journal"
	"github.com/obscura-fw/obscura/internal/memlayout"
	"github.com/obscura-fw/obscura/internal/script"
)

// DefaultSettleBound is how long the controller waits after a remote
// script for the debug channel to finish an in-flight command.
const DefaultSettleBound = time.Second

// frozenBootstrap runs instead of on-volume scripts when no usable
// persistent storage exists. It must not touch the filesystem.
const frozenBootstrap = `console.log("bootstrap: no usable flash volume, storage disabled");`

// Controller drives the lifecycle state machine. One instance owns one
// SystemContext; Run is the single thread of control.
type Controller struct {
	cfg      *board.Config
	layout   *memlayout.Layout
	vol      *flashvol.Volume
	channel  debuglink.Channel
	registry *Registry
	jrnl     *journal.Journal

	tokens      TokenGenerator
	clock       *Clock
	log         *slog.Logger
	now         func() time.Time
	entropy     func() int64
	uid         string
	settleBound time.Duration
	budget      time.Duration

	state  State
	cycle  BootCycle
	sc     *SystemContext
	frozen bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithJournal records the boot journal to j.
func WithJournal(j *journal.Journal) Option {
	return func(c *Controller) { c.jrnl = j }
}

// WithTokenGenerator replaces the cycle token source.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(c *Controller) { c.tokens = gen }
}

// WithNow replaces the wall clock used for journal timestamps and the
// simulated RTC.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithEntropy replaces the seed source for script-visible randomness.
func WithEntropy(seed func() int64) Option {
	return func(c *Controller) { c.entropy = seed }
}

// WithUID fixes the hardware unique identifier instead of generating one.
func WithUID(uid string) Option {
	return func(c *Controller) { c.uid = uid }
}

// WithSettleBound overrides the post-remote-script settle bound.
func WithSettleBound(d time.Duration) Option {
	return func(c *Controller) { c.settleBound = d }
}

// WithScriptBudget bounds the wall time of each script execution and
// interactive turn. A script that overruns the budget is interrupted and
// its termination recorded as a script fault. Zero means unbounded.
func WithScriptBudget(d time.Duration) Option {
	return func(c *Controller) { c.budget = d }
}

// WithLogger sets the structured log.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New builds a controller over an already validated layout. The layout is
// process-lifetime: it is never revalidated or mutated, including across
// soft resets.
func New(cfg *board.Config, layout *memlayout.Layout, vol *flashvol.Volume, channel debuglink.Channel, registry *Registry, opts ...Option) *Controller {
	c := &Controller{
		cfg:         cfg,
		layout:      layout,
		vol:         vol,
		channel:     channel,
		registry:    registry,
		tokens:      UUIDv7Generator{},
		clock:       NewClock(),
		log:         slog.Default(),
		now:         time.Now,
		settleBound: DefaultSettleBound,
		state:       StateColdInit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.entropy == nil {
		c.entropy = cryptoSeed
	}
	return c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return c.state }

// Cycle returns the current boot cycle.
func (c *Controller) Cycle() BootCycle { return c.cycle }

// Context returns the system context, for inspection after Run.
func (c *Controller) Context() *SystemContext { return c.sc }

// Run drives the state machine. maxCycles bounds the number of boot
// cycles for host-side use; 0 means run until ctx is cancelled, the way
// the device loops forever. The returned error is either a critical init
// failure, an UnrecoverableFault, or ctx's error.
func (c *Controller) Run(ctx context.Context, maxCycles int) error {
	c.coldInit()
	for n := 0; maxCycles == 0 || n < maxCycles; n++ {
		if err := c.runCycle(ctx); err != nil {
			c.state = StateHalted
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// coldInit is entered once per power cycle: RTC set, hardware UID read,
// script-visible randomness seeded.
func (c *Controller) coldInit() {
	c.state = StateColdInit
	c.cycle = FirstCycle(c.tokens)
	if c.uid == "" {
		c.uid = uuid.NewString()
	}
	c.sc = &SystemContext{
		Config:  c.cfg,
		Layout:  c.layout,
		Volume:  c.vol,
		Channel: c.channel,
		Log:     c.log,
		UID:     c.uid,
		BootRTC: c.now(),
		Rand:    mathrand.New(mathrand.NewSource(c.entropy())),

		ScriptBudget: c.budget,
	}
	c.log.Info("cold init", "board", c.cfg.Board, "uid", c.uid)
}

func (c *Controller) runCycle(ctx context.Context) error {
	c.beginCycleRecord()

	if err := c.subsystemsUp(); err != nil {
		return err
	}
	c.fsReady()

	interrupted := c.runBootScript()

	if c.cycle.First && !interrupted && c.vol.Mounted() && c.vol.HasScript(c.cfg.Scripts.Main) {
		// Deployed-script fast path: runs to completion or crash without
		// ever exposing a prompt. Only the power-on cycle takes it;
		// every soft reset after that offers interactive mode.
		c.runMainScript()
	} else if err := c.interactive(ctx); err != nil {
		return err
	}

	c.teardown()
	return nil
}

func (c *Controller) subsystemsUp() error {
	c.transition(StateSubsystemsUp)
	degraded, err := c.registry.InitAll(c.sc)
	for _, ie := range degraded {
		c.recordEvent(journal.EventDegradedInit, ie.Error(), "")
	}
	if err != nil {
		c.log.Error("critical subsystem failed", "error", err)
		return err
	}
	return nil
}

// fsReady mounts the flash volume, formatting and retrying exactly once
// on failure. If the retry also fails the cycle runs the frozen bootstrap
// instead of on-volume scripts; that path never halts.
func (c *Controller) fsReady() {
	c.frozen = false
	if err := c.vol.Mount(); err != nil {
		c.log.Warn("flash volume mount failed, formatting", "error", err)
		if ferr := c.vol.Format(); ferr != nil {
			c.log.Warn("flash volume format failed", "error", ferr)
		} else {
			c.recordEvent(journal.EventMountFormatted, "fresh filesystem created", "")
			if merr := c.vol.Mount(); merr != nil {
				c.log.Warn("flash volume remount failed", "error", merr)
			}
		}
	}
	if c.vol.Mounted() {
		// Sentinel lets host tooling identify the volume; failure here
		// is ignorable.
		if err := c.vol.TouchSentinel(); err != nil {
			c.log.Warn("sentinel write failed", "error", err)
		}
	} else {
		c.frozen = true
		c.recordEvent(journal.EventFrozenBootstrap, "no usable flash volume", "")
		c.log.Warn("falling back to frozen bootstrap")
	}
	c.transition(StateFSReady)
}

// runBootScript executes the fixed-name boot script (or the frozen
// bootstrap) and reports whether the debug channel interrupted it.
func (c *Controller) runBootScript() bool {
	c.transition(StateBootScripts)
	if c.frozen {
		fault := c.execScript("bootstrap", frozenBootstrap)
		return fault != nil && fault.Interrupted
	}
	name := c.cfg.Scripts.Boot
	if !c.vol.HasScript(name) {
		return false
	}
	source, err := c.vol.ReadScript(name)
	if err != nil {
		c.log.Warn("boot script unreadable", "script", name, "error", err)
		return false
	}
	fault := c.execScript(name, source)
	return fault != nil && fault.Interrupted
}

func (c *Controller) runMainScript() {
	name := c.cfg.Scripts.Main
	source, err := c.vol.ReadScript(name)
	if err != nil {
		c.log.Warn("main script unreadable", "script", name, "error", err)
		return
	}
	c.execScript(name, source)
}

// execScript runs one script with interruption available, catching the
// fault at this boundary. Faults are reported to the log, the journal,
// and the debug channel; they never propagate.
func (c *Controller) execScript(name, source string) *script.Fault {
	tok := script.NewToken()
	c.channel.BindInterrupt(tok.Interrupt)
	c.channel.SetInterruptEnabled(true)
	err := c.sc.Runtime.Execute(name, source, tok)
	c.channel.SetInterruptEnabled(false)
	c.channel.BindInterrupt(nil)
	if err == nil {
		return nil
	}
	fault, ok := script.AsFault(err)
	if !ok {
		fault = &script.Fault{Script: name, Message: err.Error(), Err: err}
	}
	c.reportFault(fault, "")
	return fault
}

// interactive loops one session turn at a time: faults are caught locally
// and the loop continues. It exits on the session's explicit termination
// or hands off to the remote script sequence when one is ready.
func (c *Controller) interactive(ctx context.Context) error {
	c.transition(StateInteractive)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.channel.ScriptReady() {
			c.executeRemote(ctx)
			return nil
		}

		line, kind := c.readTurnSource(ctx)
		switch kind {
		case debuglink.TurnExit:
			return nil
		case debuglink.TurnWake:
			// Channel state changed under the read, or ctx was cancelled;
			// re-poll.
			continue
		}
		if c.sc.RecordTurn != nil {
			c.sc.RecordTurn(line)
		}

		tok := script.NewToken()
		c.channel.BindInterrupt(tok.Interrupt)
		c.channel.SetInterruptEnabled(true)
		result, err := c.sc.Runtime.EvalTurn(line, tok)
		c.channel.SetInterruptEnabled(false)
		c.channel.BindInterrupt(nil)
		if err != nil {
			if fault, ok := script.AsFault(err); ok {
				c.reportFault(fault, "")
			} else {
				c.log.Error("interactive turn failed", "error", err)
			}
			continue
		}
		c.channel.WriteTurn(result)
	}
}

// readTurnSource reads one logical turn. In friendly mode lines
// accumulate until a blank line submits the buffer.
func (c *Controller) readTurnSource(ctx context.Context) (string, debuglink.TurnKind) {
	line, kind := c.channel.ReadTurn(ctx)
	if kind != debuglink.TurnLine || c.channel.Mode() != debuglink.ModeFriendly {
		return line, kind
	}
	buf := line
	for {
		next, kind := c.channel.ReadTurn(ctx)
		switch kind {
		case debuglink.TurnLine:
			if next == "" {
				return buf, debuglink.TurnLine
			}
			buf += "\n" + next
		default:
			return buf, kind
		}
	}
}

// executeRemote runs the five-step remote script sequence. The step order
// is invariant whether or not the script faults: lock the interruption
// toggle open, execute, unlock, settle, then always tear down.
func (c *Controller) executeRemote(ctx context.Context) {
	c.transition(StateRemoteScript)
	source := c.channel.TakeScript()
	hash := journal.ScriptHash(source)
	c.recordEvent(journal.EventRemoteScript, "debug channel script", hash)

	c.channel.SetInterruptEnabled(true)
	c.channel.LockInterruptToggle(true)

	tok := script.NewToken()
	c.channel.BindInterrupt(tok.Interrupt)
	if err := c.sc.Runtime.Execute("<remote>", source, tok); err != nil {
		if fault, ok := script.AsFault(err); ok {
			c.reportFault(fault, hash)
		} else {
			c.log.Error("remote script failed", "error", err)
		}
	}
	c.channel.BindInterrupt(nil)

	c.channel.LockInterruptToggle(false)
	c.channel.SetInterruptEnabled(true)

	if !c.channel.Settle(ctx, c.settleBound) {
		c.log.Warn("debug channel did not settle", "bound", c.settleBound)
	}
	c.channel.SetInterruptEnabled(false)
}

// teardown deinitializes in exact reverse init order, sweeps the arena,
// and advances the boot cycle. The validated layout is untouched; it is
// process-lifetime, not cycle-lifetime.
func (c *Controller) teardown() {
	c.transition(StateTeardown)
	order := c.registry.DeinitAll(c.sc)
	c.log.Info("subsystems down", "order", order)
	c.vol.Unmount()
	c.cycle = c.cycle.Advance(c.tokens)
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.log.Info("lifecycle transition", "from", string(from), "to", string(to), "cycle", c.cycle.Number)
	if c.jrnl == nil {
		return
	}
	err := c.jrnl.RecordTransition(context.Background(), c.cycle.Token, c.clock.Next(), string(from), string(to), c.now())
	if err != nil {
		c.log.Warn("journal transition write failed", "error", err)
	}
}

func (c *Controller) beginCycleRecord() {
	if c.jrnl == nil {
		return
	}
	err := c.jrnl.BeginCycle(context.Background(), c.cycle.Token, c.cycle.Number, c.cycle.First, c.now())
	if err != nil {
		c.log.Warn("journal cycle write failed", "error", err)
	}
}

func (c *Controller) recordEvent(kind, detail, scriptHash string) {
	if c.jrnl == nil {
		return
	}
	err := c.jrnl.RecordEvent(context.Background(), c.cycle.Token, c.clock.Next(), kind, detail, scriptHash, c.now())
	if err != nil {
		c.log.Warn("journal event write failed", "error", err)
	}
}

func (c *Controller) reportFault(fault *script.Fault, scriptHash string) {
	c.log.Error("script fault", "script", fault.Script, "interrupted", fault.Interrupted, "message", fault.Message)
	c.recordEvent(journal.EventScriptFault, fault.Message, scriptHash)
	c.channel.WriteFault(fault.Message)
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
