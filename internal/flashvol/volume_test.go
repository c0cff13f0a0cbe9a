package flashvol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMount_UnformattedFails(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "flash"))

	err := v.Mount()
	require.Error(t, err)
	assert.True(t, IsMountError(err))
	assert.False(t, v.Mounted())
}

func TestFormatThenMount(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "flash"))

	require.NoError(t, v.Format())
	require.NoError(t, v.Mount())
	assert.True(t, v.Mounted())
}

func TestMount_CorruptMarkerFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flash")
	v := New(root)
	require.NoError(t, v.Format())
	require.NoError(t, os.WriteFile(filepath.Join(root, "obscura.fat"), []byte("garbage"), 0o644))

	err := v.Mount()
	require.Error(t, err)
	assert.True(t, IsMountError(err))
}

func TestFormat_WipesContents(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "flash"))
	require.NoError(t, v.Format())
	require.NoError(t, v.Mount())
	require.NoError(t, v.WriteScript("boot.js", "led.on()"))

	require.NoError(t, v.Format())
	require.NoError(t, v.Mount())
	assert.False(t, v.HasScript("boot.js"))
}

func TestScripts(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "flash"))
	require.NoError(t, v.Format())
	require.NoError(t, v.Mount())

	assert.False(t, v.HasScript("boot.js"))
	require.NoError(t, v.WriteScript("boot.js", "1+1"))
	assert.True(t, v.HasScript("boot.js"))

	src, err := v.ReadScript("boot.js")
	require.NoError(t, err)
	assert.Equal(t, "1+1", src)
}

func TestTouchSentinel(t *testing.T) {
	root := filepath.Join(t.TempDir(), "flash")
	v := New(root)
	require.NoError(t, v.Format())
	require.NoError(t, v.Mount())

	require.NoError(t, v.TouchSentinel())
	_, err := os.Stat(filepath.Join(root, SentinelName))
	assert.NoError(t, err)

	// Idempotent.
	assert.NoError(t, v.TouchSentinel())
}

func TestUnmounted_Operations(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "flash"))

	assert.False(t, v.HasScript("boot.js"))
	_, err := v.ReadScript("boot.js")
	assert.Error(t, err)
	assert.Error(t, v.TouchSentinel())
}
