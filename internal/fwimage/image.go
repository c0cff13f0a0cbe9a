// Package fwimage loads peripheral firmware images (Intel HEX) destined
// for a peripheral-firmware-image region, and proves they fit before any
// peripheral tries to map them.
package fwimage

import (
	"fmt"
	"os"

	"github.com/marcinbor85/gohex"

	"github.com/obscura-fw/obscura/internal/memlayout"
)

// Image is a parsed firmware image.
type Image struct {
	Name     string
	segments []gohex.DataSegment
	size     uint64
}

// Load parses an Intel HEX file.
func Load(name, path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open firmware image %s: %w", name, err)
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, fmt.Errorf("parse firmware image %s: %w", name, err)
	}

	img := &Image{Name: name, segments: mem.GetDataSegments()}
	for _, seg := range img.segments {
		img.size += uint64(len(seg.Data))
	}
	if img.size == 0 {
		return nil, fmt.Errorf("firmware image %s: no data records", name)
	}
	return img, nil
}

// Size returns the total payload size in bytes.
func (i *Image) Size() uint64 { return i.size }

// Span returns the address span covered by the image, from the lowest
// record address to the end of the highest. Sparse images span more than
// they occupy.
func (i *Image) Span() uint64 {
	if len(i.segments) == 0 {
		return 0
	}
	lo := uint64(i.segments[0].Address)
	hi := uint64(i.segments[0].Address) + uint64(len(i.segments[0].Data))
	for _, seg := range i.segments[1:] {
		base := uint64(seg.Address)
		end := base + uint64(len(seg.Data))
		if base < lo {
			lo = base
		}
		if end > hi {
			hi = end
		}
	}
	return hi - lo
}

// CheckFit verifies the image span fits the given region extent. The image
// is linked position-independent and relocated to the region base, so only
// the span matters, not the record addresses.
func (i *Image) CheckFit(ext memlayout.Extent) error {
	if ext.IsZero() {
		return fmt.Errorf("firmware image %s: no backing region", i.Name)
	}
	if span := i.Span(); span > ext.Length {
		return fmt.Errorf("firmware image %s: span %#x exceeds region %s", i.Name, span, ext)
	}
	return nil
}
