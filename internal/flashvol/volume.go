// Package flashvol is the persistent storage boundary: one well-known
// volume with a fixed mount point, holding the fixed-name scripts and the
// ownership sentinel host tooling looks for.
//
// The simulator backs the volume with a host directory. "Formatted" means
// the directory exists and carries a valid filesystem marker; mounting an
// unformatted or corrupt volume fails the same way a blank flash chip
// does, which is what drives the controller's format-and-retry path.
package flashvol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SentinelName marks a mounted volume as owned by this firmware so host
// tooling can identify it.
const SentinelName = ".obscura_disk"

// markerName and markerMagic identify a formatted volume.
const (
	markerName  = "obscura.fat"
	markerMagic = "OBSCURAFS1\n"
)

// MountError reports why the volume could not be mounted.
type MountError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mount %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("mount %s: %s", e.Path, e.Reason)
}

func (e *MountError) Unwrap() error { return e.Err }

// IsMountError reports whether err is (or wraps) a MountError.
func IsMountError(err error) bool {
	var me *MountError
	return errors.As(err, &me)
}

// Volume is the single persistent volume. Not safe for concurrent use;
// only the lifecycle controller touches it.
type Volume struct {
	root    string
	mounted bool
}

// New returns an unmounted volume rooted at dir. Nothing is touched until
// Mount or Format.
func New(dir string) *Volume {
	return &Volume{root: dir}
}

// Root returns the backing directory.
func (v *Volume) Root() string { return v.root }

// Mounted reports whether the volume is currently mounted.
func (v *Volume) Mounted() bool { return v.mounted }

// Mount attaches the volume. Fails with a MountError when the backing
// store is missing, unformatted, or corrupt.
func (v *Volume) Mount() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return &MountError{Path: v.root, Reason: "no device", Err: err}
	}
	if !info.IsDir() {
		return &MountError{Path: v.root, Reason: "not a directory"}
	}
	marker, err := os.ReadFile(filepath.Join(v.root, markerName))
	if err != nil {
		return &MountError{Path: v.root, Reason: "unformatted", Err: err}
	}
	if string(marker) != markerMagic {
		return &MountError{Path: v.root, Reason: "corrupt filesystem marker"}
	}
	v.mounted = true
	return nil
}

// Format creates a fresh, empty filesystem on the backing store,
// destroying whatever was there. The volume is left unmounted.
func (v *Volume) Format() error {
	v.mounted = false
	if err := os.RemoveAll(v.root); err != nil {
		return fmt.Errorf("format %s: %w", v.root, err)
	}
	if err := os.MkdirAll(v.root, 0o755); err != nil {
		return fmt.Errorf("format %s: %w", v.root, err)
	}
	if err := os.WriteFile(filepath.Join(v.root, markerName), []byte(markerMagic), 0o644); err != nil {
		return fmt.Errorf("format %s: %w", v.root, err)
	}
	return nil
}

// Unmount detaches the volume. Idempotent.
func (v *Volume) Unmount() { v.mounted = false }

// TouchSentinel writes the firmware ownership marker. Idempotent; callers
// may ignore the error, matching the best-effort contract.
func (v *Volume) TouchSentinel() error {
	if !v.mounted {
		return fmt.Errorf("touch sentinel: volume not mounted")
	}
	return os.WriteFile(filepath.Join(v.root, SentinelName), nil, 0o644)
}

// HasScript reports whether a named script exists on the volume.
func (v *Volume) HasScript(name string) bool {
	if !v.mounted {
		return false
	}
	info, err := os.Stat(filepath.Join(v.root, name))
	return err == nil && !info.IsDir()
}

// ReadScript returns the source of a named script.
func (v *Volume) ReadScript(name string) (string, error) {
	if !v.mounted {
		return "", fmt.Errorf("read %s: volume not mounted", name)
	}
	data, err := os.ReadFile(filepath.Join(v.root, name))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// WriteScript stores a script on the volume. Used by provisioning and the
// test harness.
func (v *Volume) WriteScript(name, source string) error {
	if !v.mounted {
		return fmt.Errorf("write %s: volume not mounted", name)
	}
	return os.WriteFile(filepath.Join(v.root, name), []byte(source), 0o644)
}
