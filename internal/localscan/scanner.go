// Package localscan implements the LocalScanner described in §4.3: a
// single-pass walk of the local root producing sorted directories and a
// path-to-metadata map of files, honoring exclude lists and hidden-file
// policy.
package localscan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNosyncGuard is returned when a `.nosync` file sits directly under the
// local root — a guard against running against an unmounted or empty
// volume, ported from the teacher's scanner guard.
var ErrNosyncGuard = errors.New("localscan: .nosync guard file present under local root, refusing to scan")

// FileEntry is one file discovered by Scan.
type FileEntry struct {
	RelPath string
	Size    int64
	ModTime int64 // unix seconds
	SHA256  string
}

// Result is the output of a single Scan pass.
type Result struct {
	Dirs   []string // sorted relative directory paths, root excluded
	Files  map[string]FileEntry
	Errors int // files skipped due to read/permission error
}

// Options configures exclusion policy (§4.3, config's sync.exclude_*).
type Options struct {
	ExcludeDirs        []string
	ExcludeHiddenDirs  bool
	ExcludeHiddenFiles bool
}

func (o Options) excluded(name string) bool {
	for _, ex := range o.ExcludeDirs {
		if name == ex {
			return true
		}
	}
	return false
}

// Scan walks root once, hashing every file in a single pass. Directory
// pruning happens during traversal so excluded subtrees are never opened.
// Symlinks are not followed. Permission errors on individual files are
// counted in Result.Errors rather than aborting the walk.
func Scan(root string, opts Options) (*Result, error) {
	if _, err := os.Stat(filepath.Join(root, ".nosync")); err == nil {
		return nil, ErrNosyncGuard
	}

	res := &Result{Files: map[string]FileEntry{}}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				res.Errors++
				return nil
			}
			return err
		}

		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = normalizePath(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if opts.excluded(name) || (opts.ExcludeHiddenDirs && isHidden(name)) {
				return filepath.SkipDir
			}
			res.Dirs = append(res.Dirs, rel)
			return nil
		}

		if opts.ExcludeHiddenFiles && isHidden(name) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			res.Errors++
			return nil
		}

		sum, hashErr := hashFile(path)
		if hashErr != nil {
			res.Errors++
			return nil
		}

		res.Files[rel] = FileEntry{
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
			SHA256:  sum,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking local root %s: %w", root, err)
	}

	sort.Strings(res.Dirs)
	return res, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// normalizePath applies NFC normalization so macOS's NFD-decomposed
// filenames compare equal to the remote's NFC names, matching the teacher's
// cross-platform filename consistency rule.
func normalizePath(p string) string {
	return norm.NFC.String(filepath.ToSlash(p))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
