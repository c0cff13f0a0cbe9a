package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioPath(name string) string {
	return filepath.Join("testdata", "scenarios", name+".yaml")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScenario_TwoCycleDeployed(t *testing.T) {
	result := RunWithGolden(t, scenarioPath("two_cycle_deployed"))
	assert.Equal(t, uint64(2), result.Cycle.Number)
	assert.False(t, result.Cycle.First)
}

func TestScenario_InteractiveFault(t *testing.T) {
	RunWithGolden(t, scenarioPath("interactive_fault"))
}

func TestScenario_RemoteFault(t *testing.T) {
	RunWithGolden(t, scenarioPath("remote_fault"))
}

func TestScenario_BlankVolume(t *testing.T) {
	RunWithGolden(t, scenarioPath("blank_volume"))
}

func TestScenario_FrozenBootstrap(t *testing.T) {
	RunWithGolden(t, scenarioPath("frozen_bootstrap"))
}

func TestScenario_Determinism(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("two_cycle_deployed"))
	require.NoError(t, err)

	first, err := Run(scenario, t.TempDir())
	require.NoError(t, err)
	second, err := Run(scenario, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, string(first.Transcript), string(second.Transcript),
		"transcripts are byte-stable across runs")
}

func TestLoadScenario_Defaults(t *testing.T) {
	s, err := LoadScenario(scenarioPath("interactive_fault"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cycles, "cycles defaults to one")
	assert.Equal(t, "", s.Volume)
}

func TestLoadScenario_RejectsUnknownVolume(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "name: bad\nvolume: melted\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown volume state")
}

func TestLoadScenario_MissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anon.yaml")
	writeFile(t, path, "cycles: 1\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}
