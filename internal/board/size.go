package board

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v3"
)

// Size is a byte count that accepts plain integers and byte-size literals
// ("196K", "20M", "1024", "0x1000") in YAML, matching the way board
// headers write memory sizes.
type Size uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		if v < 0 {
			return fmt.Errorf("size must be non-negative, got %d", v)
		}
		*s = Size(v)
		return nil
	case uint64:
		*s = Size(v)
		return nil
	case string:
		n, err := parseSizeLiteral(v)
		if err != nil {
			return err
		}
		*s = Size(n)
		return nil
	default:
		return fmt.Errorf("size must be an integer or size literal, got %T", raw)
	}
}

// parseSizeLiteral parses "196K", "20MB", "0x8000" or a bare integer.
func parseSizeLiteral(raw string) (uint64, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return 0, fmt.Errorf("empty size literal")
	}
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		n, err := strconv.ParseUint(t[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("bad hex size %q: %w", raw, err)
		}
		return n, nil
	}
	if n, err := strconv.ParseUint(t, 10, 64); err == nil {
		return n, nil
	}
	// Linker-script shorthand writes "196K"; bytesize wants the unit
	// spelled with a trailing B.
	if last := t[len(t)-1]; last != 'B' && last != 'b' {
		t += "B"
	}
	bs, err := bytesize.Parse(t)
	if err != nil {
		return 0, fmt.Errorf("bad size literal %q: %w", raw, err)
	}
	return uint64(bs), nil
}

// Bytes returns the size as a plain uint64.
func (s Size) Bytes() uint64 { return uint64(s) }

// String renders the size in byte-size notation.
func (s Size) String() string {
	return bytesize.New(float64(s)).String()
}
