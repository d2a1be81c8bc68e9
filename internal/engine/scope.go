package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// enforceScope resolves configuredRoot against the fixed allowed root
// (§6 "Local-root scope enforcement"). If they differ after symlink
// resolution, the fixed root wins and a scope_warning is returned for the
// RunSummary; configuredRoot is never trusted blindly.
func enforceScope(fixedRoot, configuredRoot string) (effectiveRoot string, warning string) {
	fixedAbs, err1 := filepath.EvalSymlinks(fixedRoot)
	configuredAbs, err2 := filepath.EvalSymlinks(configuredRoot)

	if err1 != nil {
		fixedAbs = fixedRoot
	}
	if err2 != nil {
		configuredAbs = configuredRoot
	}

	if fixedAbs == configuredAbs {
		return fixedRoot, ""
	}

	return fixedRoot, fmt.Sprintf("configured local_root %q differs from the fixed root %q; using the fixed root", configuredRoot, fixedRoot)
}

// withinRoot reports whether rel, joined to root, stays inside root — used
// to guard against a retry payload referencing a path outside the local
// root or a sentinel internal directory (§7 PolicyViolation: ".sync_trash/",
// ".sync_quarantine/").
func withinRoot(root, rel string) bool {
	clean := filepath.Clean(filepath.Join(root, rel))
	rootClean := filepath.Clean(root)
	return clean == rootClean || strings.HasPrefix(clean, rootClean+string(filepath.Separator))
}

// isSentinelPath reports whether rel touches an internal sentinel directory
// that retry payloads must never be allowed to target (§7).
func isSentinelPath(rel, trashDir, quarantineDir string) bool {
	rel = filepath.ToSlash(rel)
	return strings.HasPrefix(rel, trashDir+"/") || rel == trashDir ||
		strings.HasPrefix(rel, quarantineDir+"/") || rel == quarantineDir
}
