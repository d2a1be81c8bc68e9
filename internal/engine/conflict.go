package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// conflictSuffixTimeFormat matches the local-trash timestamp format (§4.5)
// so every generated name in a run shares one timestamp convention.
const conflictSuffixTimeFormat = "20060102_150405"

// conflictPath builds the conflict-copy name "name.remote_conflict_<ts>"
// (§4.5 P6/P7): the marker follows the whole file name, extension included,
// and a numeric suffix avoids collisions with an existing copy, the way
// generateConflictPath does in the teacher.
func conflictPath(relPath string, now time.Time, exists func(string) bool) string {
	ts := now.UTC().Format(conflictSuffixTimeFormat)

	candidate := fmt.Sprintf("%s.remote_conflict_%s", relPath, ts)
	for n := 2; exists(candidate); n++ {
		candidate = fmt.Sprintf("%s.remote_conflict_%s-%d", relPath, ts, n)
	}
	return candidate
}

// conflictStemExt splits a relative path into (stem, ext) such that
// rejoining them with the conflict marker in between reads naturally.
// Dotfiles ("." + name, no further extension) are treated as having no
// extension, matching the teacher's conflictStemExt special case.
func conflictStemExt(relPath string) (string, string) {
	dir, base := filepath.Split(relPath)
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return filepath.Join(dir, base), ""
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem), ext
}

// writeConflictCopy atomically materializes destRel (relative to localRoot)
// with the freshly downloaded bytes at tmpPath, matching the download-then-
// rename atomicity rule of §4.5.
func writeConflictCopy(localRoot, destRel, tmpPath string) (string, error) {
	full := filepath.Join(localRoot, destRel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating conflict copy directory: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return "", fmt.Errorf("renaming conflict copy into place: %w", err)
	}
	return destRel, nil
}
