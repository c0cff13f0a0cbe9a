package firmware

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obscura-fw/obscura/internal/board"
	"github.com/obscura-fw/obscura/internal/flashvol"
	"github.com/obscura-fw/obscura/internal/memlayout"
)

// testConfig mirrors the reference board: heap and stack in internal
// memories, a 20 MiB frame buffer in DRAM, a fast overlay in AXI SRAM,
// codec scratch, and one DMA window in domain d3.
func testConfig() *board.Config {
	return &board.Config{
		Board: "TESTBOARD",
		Banks: []board.BankDecl{
			{Name: "SRAM1", Origin: 0x3000_0000, Length: board.Size(256 << 10)},
			{Name: "ITCM", Origin: 0x0000_0000, Length: board.Size(64 << 10)},
			{Name: "DRAM", Origin: 0xC000_0000, Length: board.Size(32 << 20)},
			{Name: "AXI", Origin: 0x2400_0000, Length: board.Size(512 << 10)},
			{Name: "SRAM4", Origin: 0x3800_0000, Length: board.Size(64 << 10)},
		},
		Regions: []board.RegionDecl{
			{Name: "heap", Bank: "SRAM1", Base: 0x3000_0000, Length: board.Size(196 << 10), Purpose: "general-heap"},
			{Name: "stack", Bank: "ITCM", Base: 0x0000_0000, Length: board.Size(64 << 10), Purpose: "call-stack"},
			{Name: "fb", Bank: "DRAM", Base: 0xC000_0000, Length: board.Size(20 << 20), Purpose: "frame-buffer"},
			{Name: "fb-overlay", Bank: "AXI", Base: 0x2400_0000, Length: board.Size(496 << 10), Purpose: "frame-buffer-overlay"},
			{Name: "codec", Bank: "DRAM", Base: 0xC140_0000, Length: board.Size(4 << 20), Purpose: "codec-scratch"},
			{Name: "dma-d3", Bank: "SRAM4", Base: 0x3800_0000, Length: board.Size(64 << 10), Purpose: "dma-scratch"},
		},
		Allocations: []board.AllocDecl{
			{Name: "vospi", Region: "dma-d3", Size: board.Size(32 << 10), Domain: "d3"},
		},
		I2C: []board.I2CBus{
			{ID: 1, SCL: "PB8", SDA: "PB9", Speed: "400k"},
		},
		Codec: board.CodecConfig{
			QualityLow:       50,
			QualityHigh:      90,
			QualityThreshold: board.Size(4 << 20),
		},
		Scripts: board.ScriptNames{Boot: "boot.js", Main: "main.js"},
	}
}

func testLayout(t *testing.T, cfg *board.Config) *memlayout.Layout {
	t.Helper()
	banks, regions, allocs := cfg.Partitioning()
	layout, err := memlayout.Validate(banks, regions, allocs)
	require.NoError(t, err)
	return layout
}

// formattedVolume returns a mountable, empty volume.
func formattedVolume(t *testing.T) *flashvol.Volume {
	t.Helper()
	v := flashvol.New(filepath.Join(t.TempDir(), "flash"))
	require.NoError(t, v.Format())
	return v
}

// writeScript stores a script on an unmounted volume and leaves it
// unmounted again, the state the controller expects at cycle start.
func writeScript(t *testing.T, v *flashvol.Volume, name, source string) {
	t.Helper()
	require.NoError(t, v.Mount())
	require.NoError(t, v.WriteScript(name, source))
	v.Unmount()
}
