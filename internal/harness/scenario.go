package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Volume states a scenario can start from.
const (
	VolumeFormatted = "formatted"
	VolumeBlank     = "blank"
	VolumeBroken    = "broken"
)

// Scenario describes one scripted boot run.
type Scenario struct {
	// Name uniquely identifies the scenario; the golden file shares it.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Board optionally names a board definition file, relative to the
	// scenario. Empty means the built-in reference board.
	Board string `yaml:"board,omitempty"`

	// Cycles bounds how many boot cycles run. Zero means one.
	Cycles int `yaml:"cycles,omitempty"`

	// Volume is the flash state at power-on; empty means formatted.
	Volume string `yaml:"volume,omitempty"`

	// Scripts are written to the volume before the run, keyed by name.
	// Ignored for blank and broken volumes.
	Scripts map[string]string `yaml:"scripts,omitempty"`

	// Turns feed the interactive session in order.
	Turns []Turn `yaml:"turns,omitempty"`

	// RemoteScript, when set, is offered on the debug channel before the
	// run, as an IDE upload would be.
	RemoteScript string `yaml:"remote_script,omitempty"`
}

// Turn is one scripted session input.
type Turn struct {
	Line string `yaml:"line,omitempty"`
	Exit bool   `yaml:"exit,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: missing name", path)
	}
	switch s.Volume {
	case "", VolumeFormatted, VolumeBlank, VolumeBroken:
	default:
		return nil, fmt.Errorf("scenario %s: unknown volume state %q", path, s.Volume)
	}
	if s.Cycles <= 0 {
		s.Cycles = 1
	}
	return &s, nil
}
