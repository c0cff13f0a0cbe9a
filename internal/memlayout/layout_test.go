package memlayout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_FrameBufferFits(t *testing.T) {
	banks, regions, allocs := referenceBoard()
	layout, err := Validate(banks, regions, allocs)
	require.NoError(t, err)

	usable := uint64(20*1024*1024) - FrameBufferHeaderSize
	assert.True(t, layout.FrameBufferFits(usable))
	assert.False(t, layout.FrameBufferFits(usable+1), "a frame larger than length-header must be rejected")
	assert.True(t, layout.FrameBufferFits(640*480*2), "VGA RGB565 frame fits")
}

func TestLayout_FrameBufferFits_NoRegion(t *testing.T) {
	banks := []Bank{{Name: "SRAM1", Origin: 0x30000000, Length: 256 * 1024}}
	regions := []Region{
		{Name: "heap", Bank: "SRAM1", Base: 0x30000000, Length: 196 * 1024, Purpose: PurposeHeap},
	}
	layout, err := Validate(banks, regions, nil)
	require.NoError(t, err)

	assert.False(t, layout.FrameBufferFits(1))
}

func TestLayout_FrameBufferFits_RegionSmallerThanHeader(t *testing.T) {
	banks := []Bank{{Name: "SRAM1", Origin: 0x30000000, Length: 256 * 1024}}
	regions := []Region{
		// 512 bytes is 32-aligned and validates, but holds no usable
		// capacity once the allocator header is carved off.
		{Name: "fb", Bank: "SRAM1", Base: 0x30000000, Length: 512, Purpose: PurposeFrameBuffer},
	}
	layout, err := Validate(banks, regions, nil)
	require.NoError(t, err)

	assert.False(t, layout.FrameBufferFits(1))
	assert.False(t, layout.FrameBufferFits(0))
}

func TestLayout_DMAWindows(t *testing.T) {
	banks, regions, allocs := referenceBoard()
	layout, err := Validate(banks, regions, allocs)
	require.NoError(t, err)

	w, ok := layout.DMA("D3")
	require.True(t, ok)
	assert.Equal(t, Extent{Base: 0x38000000, Length: 4 * 1024}, w.Data)
	assert.Equal(t, Extent{Base: 0x38000000, Length: 4 * 1024}, w.Protection, "4K is already a power of two")

	// 32K buffer at 4K offset: protection rounds to the enclosing power of two.
	v, ok := layout.DMA("D3V")
	require.True(t, ok)
	assert.Equal(t, uint64(32*1024), v.Protection.Length)

	_, ok = layout.DMA("D9")
	assert.False(t, ok)

	assert.Equal(t, []string{"D3", "D3V"}, layout.DMADomains())
}

func TestLayout_ImmutableAfterValidate(t *testing.T) {
	banks, regions, allocs := referenceBoard()
	layout, err := Validate(banks, regions, allocs)
	require.NoError(t, err)

	// Mutating the inputs after validation must not change the layout.
	regions[0].Length = 1
	banks[0].Length = 1
	assert.Equal(t, uint64(196*1024), layout.Heap().Length)
}
