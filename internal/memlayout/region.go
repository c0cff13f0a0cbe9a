package memlayout

import "fmt"

// Purpose tags a region or allocation with the consumer category it serves.
// Alignment and sizing rules are driven by the tag, not by the consumer's
// identity: every DMA scratch area gets protection-granule sizing no matter
// which peripheral owns it.
type Purpose string

const (
	PurposeHeap               Purpose = "general-heap"
	PurposeStack              Purpose = "call-stack"
	PurposeFrameBuffer        Purpose = "frame-buffer"
	PurposeFrameBufferOverlay Purpose = "frame-buffer-overlay"
	PurposeCodecScratch       Purpose = "codec-scratch"
	PurposeDMAScratch         Purpose = "dma-scratch"
	PurposeFirmwareImage      Purpose = "peripheral-firmware-image"
	PurposeMisc               Purpose = "misc-buffer"
)

// knownPurposes is the closed set of valid purpose tags.
var knownPurposes = map[Purpose]bool{
	PurposeHeap:               true,
	PurposeStack:              true,
	PurposeFrameBuffer:        true,
	PurposeFrameBufferOverlay: true,
	PurposeCodecScratch:       true,
	PurposeDMAScratch:         true,
	PurposeFirmwareImage:      true,
	PurposeMisc:               true,
}

// purposeAlignment returns the minimum alignment, in bytes, a region's
// length must be a multiple of for the given purpose. All values are powers
// of two. DMA regions additionally require power-of-two total sizes; that
// stronger rule is enforced separately in Validate.
func purposeAlignment(p Purpose) uint64 {
	switch p {
	case PurposeStack:
		return 8
	case PurposeDMAScratch:
		return 32 // cache-line granularity for coherent buffers
	case PurposeFrameBuffer, PurposeFrameBufferOverlay, PurposeCodecScratch:
		return 32
	default:
		return 4
	}
}

// Bank is one physical memory device: internal SRAM, tightly-coupled
// memory, external DRAM, or memory-mapped flash. Regions never span banks.
type Bank struct {
	Name   string
	Origin uint64
	Length uint64
}

// End returns the first address past the bank.
func (b Bank) End() uint64 { return b.Origin + b.Length }

// Region is a named, fixed extent inside a single bank, reserved for one
// category of use. Regions are declared in board configuration and never
// change for the life of the process.
type Region struct {
	Name    string
	Bank    string
	Base    uint64
	Length  uint64
	Purpose Purpose
}

// End returns the first address past the region.
func (r Region) End() uint64 { return r.Base + r.Length }

// Allocation is a named sub-extent carved from a region for one specific
// consumer. Offset is relative to the region base.
//
// Overlay allocations are transient overlays over reclaimable space: they
// may overlap allocations of strictly lower priority that are marked
// Reclaimable (the frame-buffer fast-overlay pattern, where overlay memory
// is only valid while the frame buffer stays under a size threshold).
type Allocation struct {
	Name        string
	Region      string
	Offset      uint64
	Size        uint64
	Overlay     bool
	Reclaimable bool
	Priority    int
	// Domain names the DMA domain for dma-scratch allocations ("D1", "D2",
	// "D3" on the reference board). Empty for every other purpose.
	Domain string
}

// End returns the first offset past the allocation, relative to the region
// base.
func (a Allocation) End() uint64 { return a.Offset + a.Size }

// Extent is a validated, absolute address range. The zero Extent means
// "not present".
type Extent struct {
	Base   uint64
	Length uint64
}

// End returns the first address past the extent.
func (e Extent) End() uint64 { return e.Base + e.Length }

// IsZero reports whether the extent is absent.
func (e Extent) IsZero() bool { return e.Length == 0 }

func (e Extent) String() string {
	return fmt.Sprintf("[%#x,%#x)", e.Base, e.End())
}

// overlaps reports whether two half-open ranges intersect.
func overlaps(aBase, aEnd, bBase, bEnd uint64) bool {
	return aBase < bEnd && bBase < aEnd
}

// protectionSize returns the smallest power of two >= n. DMA allocations
// are rounded up to this size so a single protection unit (MPU region on
// the reference hardware) can cover them.
func protectionSize(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	if n > 1<<63 {
		// No larger power of two exists in 64 bits; saturate so the
		// caller's fit check rejects the allocation.
		return ^uint64(0)
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// isPowerOfTwo reports whether n is a non-zero power of two.
func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
