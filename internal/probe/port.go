package probe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PortPaths locates the OS artifacts around the serial device.
type PortPaths struct {
	LockDir    string // holds LCK..<device> files
	Alternates string // glob of device paths the adapter may enumerate as
}

// lockFile is the UUCP-style lock artifact for a device path.
func (pp PortPaths) lockFile(port string) string {
	return filepath.Join(pp.LockDir, "LCK.."+filepath.Base(port))
}

// Prepare removes a stale port lock and, when the canonical device is absent,
// renames the first alternate device onto it. Enumeration order of USB serial
// adapters is not stable across boots.
func (pp PortPaths) Prepare(port string) (renamedFrom string, err error) {
	if pp.LockDir != "" {
		if err := os.Remove(pp.lockFile(port)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("probe: remove port lock: %w", err)
		}
	}

	if _, err := os.Stat(port); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("probe: stat %s: %w", port, err)
	}

	if pp.Alternates == "" {
		return "", nil
	}
	matches, err := filepath.Glob(pp.Alternates)
	if err != nil {
		return "", fmt.Errorf("probe: alternates %q: %w", pp.Alternates, err)
	}
	for _, m := range matches {
		if m == port {
			continue
		}
		if err := os.Rename(m, port); err != nil {
			return "", fmt.Errorf("probe: rename %s -> %s: %w", m, port, err)
		}
		return m, nil
	}
	return "", nil
}
