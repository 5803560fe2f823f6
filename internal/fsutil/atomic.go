package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data to a pending file next to path and renames
// it over path once synced. Missing parent directories are created with
// dirPerm. The result always carries perm, also when replacing a file
// with other permissions. Readers see either the old file or the
// complete new one.
func WriteFileAtomic(path string, data []byte, dirPerm, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	f, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithStaticPermissions(perm))
	if err != nil {
		return fmt.Errorf("creating pending file for %s: %w", path, err)
	}
	defer func() { _ = f.Cleanup() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing pending file: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
