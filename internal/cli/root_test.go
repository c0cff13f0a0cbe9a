package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoardYAML = `board: OBSCURA4

banks:
  - {name: SRAM1, origin: 0x30000000, length: 256K}
  - {name: ITCM, origin: 0x00000000, length: 64K}
  - {name: SRAM4, origin: 0x38000000, length: 64K}
  - {name: AXI, origin: 0x24000000, length: 512K}
  - {name: DRAM, origin: 0xC0000000, length: 32M}

regions:
  - {name: heap, bank: SRAM1, base: 0x30000000, length: 196K, purpose: general-heap}
  - {name: stack, bank: ITCM, base: 0x00000000, length: 64K, purpose: call-stack}
  - {name: framebuffer, bank: DRAM, base: 0xC0000000, length: 20M, purpose: frame-buffer}
  - {name: fb-overlay, bank: AXI, base: 0x24000000, length: 496K, purpose: frame-buffer-overlay}
  - {name: codec, bank: DRAM, base: 0xC1400000, length: 1M, purpose: codec-scratch}
  - {name: dma-d3, bank: SRAM4, base: 0x38000000, length: 64K, purpose: dma-scratch}

allocations:
  - {name: d3-buffers, region: dma-d3, size: 4K, domain: d3}

i2c:
  - {id: 1, scl: B8, sda: B9, speed: standard}

codec:
  quality_low: 50
  quality_high: 90
  quality_threshold: 4M
`

// writeBoardFile drops a board definition into dir and returns its path.
func writeBoardFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommandRejectsInvalidFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "validate", "board.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["validate"])
	assert.True(t, names["journal"])
}
