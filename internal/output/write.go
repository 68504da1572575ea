package output

import (
	"fmt"
	"os"
	"path/filepath"
)

// Wipe empties dir, creating it when missing, so files from an earlier run
// with different regions or services do not linger.
func Wipe(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output: create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("output: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("output: remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Write stores data as dir/name using a temp-file-then-rename strategy so a
// reader (or a git commit step) never sees a partially-written file.
func Write(dir, name string, data []byte) (string, error) {
	path := Path(dir, name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("output: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return "", fmt.Errorf("output: write %s: %w", name, writeErr)
		}
		return "", fmt.Errorf("output: close %s: %w", name, closeErr)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("output: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("output: rename %s: %w", name, err)
	}
	return path, nil
}
