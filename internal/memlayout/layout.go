package memlayout

import "sort"

// FrameBufferHeaderSize is the bookkeeping header the frame-buffer
// allocator reserves at the start of its region. Usable frame-buffer
// capacity is the region length minus this header.
const FrameBufferHeaderSize = 1024

// Layout is the validated, read-only view of the partitioned address
// space. Exactly one Layout exists per process; it is built by Validate and
// survives every soft reset unchanged.
//
// Extents are returned by value. A zero Extent means the purpose was not
// declared for this board.
type Layout struct {
	banks   map[string]Bank
	regions map[string]Region

	heap        Extent
	stack       Extent
	frameBuffer Extent
	fbOverlay   Extent
	codec       Extent
	fwImages    map[string]Extent // by region name
	dma         map[string]DMAWindow
	misc        map[string]Extent // by allocation name
}

// DMAWindow is the validated extent for one DMA domain along with the
// power-of-two protection extent that encloses it.
type DMAWindow struct {
	Domain     string
	Data       Extent
	Protection Extent
}

func newLayout(banks map[string]Bank, regions map[string]Region, allocs map[string][]Allocation) *Layout {
	l := &Layout{
		banks:    banks,
		regions:  regions,
		fwImages: make(map[string]Extent),
		dma:      make(map[string]DMAWindow),
		misc:     make(map[string]Extent),
	}
	for _, r := range regions {
		ext := Extent{Base: r.Base, Length: r.Length}
		switch r.Purpose {
		case PurposeHeap:
			l.heap = ext
		case PurposeStack:
			l.stack = ext
		case PurposeFrameBuffer:
			l.frameBuffer = ext
		case PurposeFrameBufferOverlay:
			l.fbOverlay = ext
		case PurposeCodecScratch:
			l.codec = ext
		case PurposeFirmwareImage:
			l.fwImages[r.Name] = ext
		}
	}
	for regionName, as := range allocs {
		r := regions[regionName]
		for _, a := range as {
			abs := Extent{Base: r.Base + a.Offset, Length: a.Size}
			switch r.Purpose {
			case PurposeDMAScratch:
				l.dma[a.Domain] = DMAWindow{
					Domain:     a.Domain,
					Data:       abs,
					Protection: Extent{Base: abs.Base, Length: protectionSize(a.Size)},
				}
			case PurposeMisc:
				l.misc[a.Name] = abs
			}
		}
	}
	return l
}

// Heap returns the extent handed to the scripting runtime's memory arena.
func (l *Layout) Heap() Extent { return l.heap }

// Stack returns the call-stack extent.
func (l *Layout) Stack() Extent { return l.stack }

// FrameBuffer returns the frame-buffer region extent, header included.
func (l *Layout) FrameBuffer() Extent { return l.frameBuffer }

// FrameBufferOverlay returns the fast overlay extent, if declared.
func (l *Layout) FrameBufferOverlay() Extent { return l.fbOverlay }

// CodecScratch returns the codec working-buffer extent.
func (l *Layout) CodecScratch() Extent { return l.codec }

// FrameBufferFits reports whether a frame of n bytes fits the usable
// frame-buffer capacity (region length minus the allocator header).
func (l *Layout) FrameBufferFits(n uint64) bool {
	if l.frameBuffer.IsZero() || l.frameBuffer.Length <= FrameBufferHeaderSize {
		// A region that cannot even hold the header has zero capacity;
		// the subtraction below would wrap.
		return false
	}
	return n <= l.frameBuffer.Length-FrameBufferHeaderSize
}

// DMA returns the validated window for a DMA domain. ok is false when the
// domain was not declared.
func (l *Layout) DMA(domain string) (DMAWindow, bool) {
	w, ok := l.dma[domain]
	return w, ok
}

// DMADomains returns the declared DMA domains in sorted order.
func (l *Layout) DMADomains() []string {
	out := make([]string, 0, len(l.dma))
	for d := range l.dma {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// FirmwareImage returns the extent of a peripheral-firmware-image region
// by region name.
func (l *Layout) FirmwareImage(region string) (Extent, bool) {
	e, ok := l.fwImages[region]
	return e, ok
}

// Misc returns a misc-buffer allocation extent by allocation name.
func (l *Layout) Misc(name string) (Extent, bool) {
	e, ok := l.misc[name]
	return e, ok
}

// Region returns a declared region by name, for diagnostics.
func (l *Layout) Region(name string) (Region, bool) {
	r, ok := l.regions[name]
	return r, ok
}

// Banks returns the declared banks in name order, for diagnostics.
func (l *Layout) Banks() []Bank {
	out := make([]Bank, 0, len(l.banks))
	for _, b := range l.banks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
