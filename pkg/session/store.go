package session

import (
	"fmt"
	"os"
	"path/filepath"
)

const sessionFileMode = 0644

// writeFileAtomic replaces path with data. The bytes go to a hidden temp file
// in the same directory, are synced, then renamed over path, so readers see
// either the previous document or the new one.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync session file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, sessionFileMode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set session file mode: %w", err)
	}

	// Atomic replace
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}
