package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_RejectsInvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.LocalRoot = ""
	err := Save(filepath.Join(t.TempDir(), "feishu-sync.yaml"), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSave_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feishu-sync.yaml")
	cfg := Defaults()
	cfg.Sync.LocalRoot = "/tmp/root"
	cfg.Sync.PollIntervalSec = 120

	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/root", reloaded.Sync.LocalRoot)
	assert.Equal(t, 120, reloaded.Sync.PollIntervalSec)
}

func TestSave_IsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feishu-sync.yaml")
	cfg := Defaults()
	cfg.Sync.LocalRoot = "/tmp/root"

	require.NoError(t, Save(path, cfg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "feishu-sync.yaml", entries[0].Name())
}

func TestSave_KnownFieldsWinOverStaleExtra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feishu-sync.yaml")
	cfg := Defaults()
	cfg.Sync.LocalRoot = "/tmp/root"
	cfg.Extra = map[string]any{"log_level": "this-should-never-surface"}

	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.LogLevel, reloaded.LogLevel)
}
