package infra

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomicDir creates the parent directory of path.
func writeFileAtomicDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path atomically (write + rename).
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := writeFileAtomicDir(path); err != nil {
		return err
	}

	// Temp file unique per process to avoid racing another writer
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
