package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// trashTimeFormat is the spec's exact local-trash timestamp shape (§4.5).
const trashTimeFormat = "20060102_150405"

// softDeleteLocal moves localRoot/relPath under
// <local_root>/<local_trash_dir>/<YYYYMMDD_HHMMSS>/<relative_path>, matching
// §4.5's local soft-delete semantics and the source's _soft_delete_local.
func softDeleteLocal(localRoot, trashDir, relPath string, now time.Time) error {
	src := filepath.Join(localRoot, relPath)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil // already gone; nothing to move
	}

	dest := filepath.Join(localRoot, trashDir, now.UTC().Format(trashTimeFormat), relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: creating trash directory: %v", ErrLocalIO, err)
	}

	if err := os.Rename(src, dest); err != nil {
		return fmt.Errorf("%w: moving %s to trash: %v", ErrLocalIO, relPath, err)
	}
	return nil
}
