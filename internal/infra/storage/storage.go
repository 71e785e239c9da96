// Package storage provides EnsureDir, a small helper that makes sure a
// file's parent directory exists before it is opened. Used ahead of
// identity token persistence, where bbolt itself refuses to create missing
// parent directories.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir makes sure the parent directory of path exists, creating it
// with 0o700 if needed. A no-op when path has no directory component.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}
