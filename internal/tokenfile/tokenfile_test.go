package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user_token.json")

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := NewFromResponse("access-1", "refresh-1", "Bearer", 7200, 2592000, now)

	require.NoError(t, Save(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFromResponse("a", "r", "Bearer", 600, 2592000, now)

	assert.False(t, f.NeedsRefresh(5*time.Minute, now))
	assert.True(t, f.NeedsRefresh(5*time.Minute, now.Add(8*time.Minute)))
}

func TestLoadMissingFileReportsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, os.IsNotExist(err))
}
