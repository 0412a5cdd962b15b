package utils

import (
	"os"
	"path/filepath"
)

// EnsureParent creates the parent directory of path if it does not exist
func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

func EnsureDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
