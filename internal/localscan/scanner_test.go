package localscan

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanProducesFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	res, err := Scan(root, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"d"}, res.Dirs)
	require.Contains(t, res.Files, "a.txt")

	sum := sha256.Sum256([]byte("a"))
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Files["a.txt"].SHA256)
	assert.Equal(t, 0, res.Errors)
}

func TestScanZeroByteFileHashesToEmptyStringSHA256(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o644))

	res, err := Scan(root, Options{})
	require.NoError(t, err)

	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, emptySHA256, res.Files["empty.txt"].SHA256)
}

func TestScanPrunesExcludedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("x"), 0o644))

	res, err := Scan(root, Options{ExcludeDirs: []string{".git"}})
	require.NoError(t, err)

	assert.Empty(t, res.Dirs)
	assert.Empty(t, res.Files)
}

func TestScanExcludesHiddenFilesAndDirsWhenConfigured(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden", "x.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".dotfile"), []byte("y"), 0o644))

	res, err := Scan(root, Options{ExcludeHiddenDirs: true, ExcludeHiddenFiles: true})
	require.NoError(t, err)

	assert.Empty(t, res.Dirs)
	assert.Empty(t, res.Files)
}

func TestScanNosyncGuard(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".nosync"), nil, 0o644))

	_, err := Scan(root, Options{})
	assert.ErrorIs(t, err, ErrNosyncGuard)
}
