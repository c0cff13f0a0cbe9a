package firmware

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/obscura-fw/obscura/internal/fwimage"
	"github.com/obscura-fw/obscura/internal/memlayout"
	"github.com/obscura-fw/obscura/internal/script"
)

// Probe is an injectable hardware detection hook. Best-effort subsystems
// (sensor, thermal imager) take one so the harness can simulate absent or
// broken hardware; nil means the default probe.
type Probe func(sc *SystemContext) error

// DefaultRegistry wires the standard bring-up order. Nothing that
// allocates from the general heap precedes the runtime arena, nothing
// that issues DMA precedes the DMA claim, and the debug transport is up
// before any script can run. Teardown runs the exact reverse: audio,
// network, DMA, programmable IO, PWM, then pin state.
func DefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(NewArena())
	r.Register(NewReadline())
	r.Register(NewPins())
	r.Register(NewPWM())
	r.Register(NewPIO())
	r.Register(NewDMA())
	r.Register(NewNetwork())
	r.Register(NewAudioIn("d3"))
	r.Register(NewDebugTransport())
	r.Register(NewFBAlloc())
	r.Register(NewFrameBuffer())
	r.Register(NewFIR(nil))
	r.Register(NewSensor(nil))
	r.Register(NewCodec())
	return r
}

// --- runtime arena ---

type arenaSubsystem struct{}

// NewArena returns the scripting runtime arena subsystem. One runtime per
// boot cycle, built over the validated heap extent, discarded at teardown.
func NewArena() Subsystem { return &arenaSubsystem{} }

func (*arenaSubsystem) Name() string   { return "runtime-arena" }
func (*arenaSubsystem) Critical() bool { return true }

func (*arenaSubsystem) Init(sc *SystemContext) error {
	heap := sc.Layout.Heap()
	if heap.IsZero() {
		return errors.New("no general-heap allocation in layout")
	}
	rt := script.NewRuntime(heap, sc.Log)
	rt.SetBudget(sc.ScriptBudget)
	if err := rt.Bind("deviceUID", sc.UID); err != nil {
		return fmt.Errorf("bind deviceUID: %w", err)
	}
	if sc.Rand != nil {
		rng := sc.Rand
		if err := rt.Bind("random", func() float64 { return rng.Float64() }); err != nil {
			return fmt.Errorf("bind random: %w", err)
		}
	}
	sc.Runtime = rt
	return nil
}

func (*arenaSubsystem) Deinit(sc *SystemContext) error {
	if sc.Runtime != nil {
		sc.Runtime.Sweep()
		sc.Runtime = nil
	}
	return nil
}

// --- readline ---

type readlineSubsystem struct {
	history []string
}

// NewReadline returns the interactive line-editing subsystem. While it
// is up, every evaluated interactive line lands in the session history.
func NewReadline() Subsystem { return &readlineSubsystem{} }

func (*readlineSubsystem) Name() string   { return "readline" }
func (*readlineSubsystem) Critical() bool { return false }

func (s *readlineSubsystem) Init(sc *SystemContext) error {
	s.history = s.history[:0]
	sc.RecordTurn = s.record
	return nil
}

func (s *readlineSubsystem) Deinit(sc *SystemContext) error {
	// History survives deinit so a later session can page back through it.
	sc.RecordTurn = nil
	return nil
}

func (s *readlineSubsystem) record(line string) {
	s.history = append(s.history, line)
}

// History returns the interactive lines recorded since the last init.
func (s *readlineSubsystem) History() []string { return s.history }

// --- pins ---

type pinsSubsystem struct {
	claimed map[string]string
}

// NewPins returns the pin/GPIO subsystem. Init claims every pin named by
// the board's bus assignments and rejects double assignment.
func NewPins() Subsystem { return &pinsSubsystem{} }

func (*pinsSubsystem) Name() string   { return "pins" }
func (*pinsSubsystem) Critical() bool { return true }

func (s *pinsSubsystem) Init(sc *SystemContext) error {
	s.claimed = make(map[string]string)
	for _, bus := range sc.Config.I2C {
		owner := fmt.Sprintf("i2c%d", bus.ID)
		for _, pin := range []string{bus.SCL, bus.SDA} {
			if pin == "" {
				return fmt.Errorf("%s: missing pin assignment", owner)
			}
			if prev, dup := s.claimed[pin]; dup {
				return fmt.Errorf("pin %s assigned to both %s and %s", pin, prev, owner)
			}
			s.claimed[pin] = owner
		}
	}
	return nil
}

func (s *pinsSubsystem) Deinit(sc *SystemContext) error {
	s.claimed = nil
	return nil
}

// --- PWM outputs ---

type pwmSubsystem struct {
	slices int
}

// NewPWM returns the PWM output subsystem. Deinit parks every slice so
// nothing keeps driving a pin across a reset.
func NewPWM() Subsystem { return &pwmSubsystem{} }

func (*pwmSubsystem) Name() string   { return "pwm" }
func (*pwmSubsystem) Critical() bool { return true }

func (s *pwmSubsystem) Init(sc *SystemContext) error {
	s.slices = 8
	return nil
}

func (s *pwmSubsystem) Deinit(sc *SystemContext) error {
	s.slices = 0
	return nil
}

// --- programmable IO / timing engines ---

type pioSubsystem struct {
	armed bool
}

// NewPIO returns the programmable-IO and timer engine subsystem.
func NewPIO() Subsystem { return &pioSubsystem{} }

func (*pioSubsystem) Name() string   { return "pio" }
func (*pioSubsystem) Critical() bool { return true }

func (s *pioSubsystem) Init(sc *SystemContext) error {
	s.armed = true
	return nil
}

func (s *pioSubsystem) Deinit(sc *SystemContext) error {
	s.armed = false
	return nil
}

// --- DMA ---

type dmaSubsystem struct{}

// NewDMA returns the DMA channel subsystem. Init claims every validated
// per-domain window; consumers find theirs in SystemContext.DMAWindows.
func NewDMA() Subsystem { return &dmaSubsystem{} }

func (*dmaSubsystem) Name() string   { return "dma" }
func (*dmaSubsystem) Critical() bool { return true }

func (*dmaSubsystem) Init(sc *SystemContext) error {
	domains := sc.Layout.DMADomains()
	sc.DMAWindows = make(map[string]memlayout.DMAWindow, len(domains))
	for _, d := range domains {
		w, _ := sc.Layout.DMA(d)
		sc.DMAWindows[d] = w
	}
	return nil
}

func (*dmaSubsystem) Deinit(sc *SystemContext) error {
	sc.DMAWindows = nil
	return nil
}

// --- audio in (I2S) ---

type audioInSubsystem struct {
	domain string
	window memlayout.DMAWindow
}

// NewAudioIn returns the I2S audio capture subsystem. It records through
// the DMA window of the given domain; a board without that domain comes
// up degraded with audio disabled.
func NewAudioIn(domain string) Subsystem {
	return &audioInSubsystem{domain: domain}
}

func (*audioInSubsystem) Name() string   { return "audio-in" }
func (*audioInSubsystem) Critical() bool { return false }

func (s *audioInSubsystem) Init(sc *SystemContext) error {
	w, ok := sc.DMAWindows[s.domain]
	if !ok {
		return fmt.Errorf("no DMA window for domain %q", s.domain)
	}
	s.window = w
	return nil
}

func (s *audioInSubsystem) Deinit(sc *SystemContext) error {
	s.window = memlayout.DMAWindow{}
	return nil
}

// --- network ---

type networkSubsystem struct{}

// NewNetwork returns the wireless subsystem. Init loads every configured
// peripheral firmware image and checks it against its validated region;
// a missing or oversized image degrades with networking disabled.
func NewNetwork() Subsystem { return &networkSubsystem{} }

func (*networkSubsystem) Name() string   { return "network" }
func (*networkSubsystem) Critical() bool { return false }

func (*networkSubsystem) Init(sc *SystemContext) error {
	if len(sc.Config.Firmware) == 0 {
		return nil
	}
	sc.Firmware = make(map[string]*fwimage.Image, len(sc.Config.Firmware))
	for _, decl := range sc.Config.Firmware {
		ext, ok := sc.Layout.FirmwareImage(decl.Region)
		if !ok {
			return fmt.Errorf("firmware image %s: no region %q in layout", decl.Name, decl.Region)
		}
		img, err := fwimage.Load(decl.Name, decl.File)
		if err != nil {
			return fmt.Errorf("firmware image %s: %w", decl.Name, err)
		}
		if err := img.CheckFit(ext); err != nil {
			return fmt.Errorf("firmware image %s: %w", decl.Name, err)
		}
		sc.Firmware[decl.Name] = img
	}
	return nil
}

func (*networkSubsystem) Deinit(sc *SystemContext) error {
	sc.Firmware = nil
	return nil
}

// --- debug transport ---

type debugTransportSubsystem struct{}

// NewDebugTransport returns the debug channel subsystem. It must be live
// before any script, local or remote, runs: a remote controller has to be
// able to interrupt even a local boot script.
func NewDebugTransport() Subsystem { return &debugTransportSubsystem{} }

func (*debugTransportSubsystem) Name() string   { return "debug-transport" }
func (*debugTransportSubsystem) Critical() bool { return true }

func (*debugTransportSubsystem) Init(sc *SystemContext) error {
	if sc.Channel == nil {
		return errors.New("no debug channel attached")
	}
	sc.Channel.SetInterruptEnabled(false)
	return nil
}

func (*debugTransportSubsystem) Deinit(sc *SystemContext) error {
	sc.Channel.BindInterrupt(nil)
	sc.Channel.SetInterruptEnabled(false)
	return nil
}

// --- fast frame-buffer allocation ---

type fbAllocSubsystem struct{}

// NewFBAlloc returns the fast frame-buffer allocation subsystem, backed
// by the overlay extent when the board declares one.
func NewFBAlloc() Subsystem { return &fbAllocSubsystem{} }

func (*fbAllocSubsystem) Name() string   { return "fb-alloc" }
func (*fbAllocSubsystem) Critical() bool { return false }

func (*fbAllocSubsystem) Init(sc *SystemContext) error {
	// A board without an overlay simply has no fast allocation pool.
	sc.FastAlloc = sc.Layout.FrameBufferOverlay()
	return nil
}

func (*fbAllocSubsystem) Deinit(sc *SystemContext) error {
	sc.FastAlloc = memlayout.Extent{}
	return nil
}

// --- frame buffer ---

type framebufferSubsystem struct{}

// NewFrameBuffer returns the frame buffer subsystem.
func NewFrameBuffer() Subsystem { return &framebufferSubsystem{} }

func (*framebufferSubsystem) Name() string   { return "framebuffer" }
func (*framebufferSubsystem) Critical() bool { return false }

func (*framebufferSubsystem) Init(sc *SystemContext) error {
	fb := sc.Layout.FrameBuffer()
	if fb.IsZero() {
		return errors.New("no frame-buffer allocation in layout")
	}
	if fb.Length <= memlayout.FrameBufferHeaderSize {
		return fmt.Errorf("frame buffer of %d bytes cannot hold the allocator header", fb.Length)
	}
	sc.FrameBuffer = fb
	return nil
}

func (*framebufferSubsystem) Deinit(sc *SystemContext) error {
	sc.FrameBuffer = memlayout.Extent{}
	return nil
}

// --- FIR thermal imager ---

type firSubsystem struct {
	probe Probe
}

// NewFIR returns the thermal imager subsystem. probe overrides hardware
// detection; nil requires only a configured I2C bus.
func NewFIR(probe Probe) Subsystem { return &firSubsystem{probe: probe} }

func (*firSubsystem) Name() string   { return "fir" }
func (*firSubsystem) Critical() bool { return false }

func (s *firSubsystem) Init(sc *SystemContext) error {
	if s.probe != nil {
		return s.probe(sc)
	}
	if len(sc.Config.I2C) == 0 {
		return errors.New("no I2C bus for thermal imager")
	}
	return nil
}

func (*firSubsystem) Deinit(sc *SystemContext) error { return nil }

// --- camera sensor ---

type sensorSubsystem struct {
	probe Probe
}

// NewSensor returns the camera sensor subsystem. probe overrides hardware
// detection; nil requires an I2C bus and a claimed frame buffer.
func NewSensor(probe Probe) Subsystem { return &sensorSubsystem{probe: probe} }

func (*sensorSubsystem) Name() string   { return "sensor" }
func (*sensorSubsystem) Critical() bool { return false }

func (s *sensorSubsystem) Init(sc *SystemContext) error {
	if s.probe != nil {
		return s.probe(sc)
	}
	if len(sc.Config.I2C) == 0 {
		return errors.New("no I2C bus for sensor")
	}
	if sc.FrameBuffer.IsZero() {
		return errors.New("sensor requires a frame buffer")
	}
	return nil
}

func (*sensorSubsystem) Deinit(sc *SystemContext) error { return nil }

// --- image codec ---

type codecSubsystem struct{}

// NewCodec returns the image codec subsystem.
func NewCodec() Subsystem { return &codecSubsystem{} }

func (*codecSubsystem) Name() string   { return "codec" }
func (*codecSubsystem) Critical() bool { return false }

func (*codecSubsystem) Init(sc *SystemContext) error {
	scratch := sc.Layout.CodecScratch()
	if scratch.IsZero() {
		return errors.New("no codec-scratch allocation in layout")
	}
	q := sc.Config.Codec
	if q.QualityLow < 0 || q.QualityHigh > 100 || q.QualityLow > q.QualityHigh {
		return fmt.Errorf("bad codec quality range [%d, %d]", q.QualityLow, q.QualityHigh)
	}
	sc.CodecScratch = scratch
	low, high, threshold := q.QualityLow, q.QualityHigh, q.QualityThreshold.Bytes()
	sc.CodecQuality = func(frameSize uint64) int {
		// Large frames get the lower quality so the compressed output
		// still fits the scratch region.
		if threshold > 0 && frameSize > threshold {
			return low
		}
		return high
	}
	return nil
}

func (*codecSubsystem) Deinit(sc *SystemContext) error {
	sc.CodecQuality = nil
	sc.CodecScratch = memlayout.Extent{}
	return nil
}
