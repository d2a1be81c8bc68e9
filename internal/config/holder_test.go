package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_GetReturnsWrappedConfig(t *testing.T) {
	cfg := Defaults()
	h := NewHolder(cfg)
	assert.Same(t, cfg, h.Get())
}

func TestHolder_SetIsVisibleImmediately(t *testing.T) {
	h := NewHolder(Defaults())

	updated := Defaults()
	updated.Sync.PollIntervalSec = 42
	h.Set(updated)

	assert.Equal(t, 42, h.Get().Sync.PollIntervalSec)
}

func TestHolder_ReloadPublishesNewConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feishu-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  local_root: \"/tmp/a\"\n"), 0o600))

	h := NewHolder(Defaults())
	require.NoError(t, h.Reload(path))
	assert.Equal(t, "/tmp/a", h.Get().Sync.LocalRoot)

	require.NoError(t, os.WriteFile(path, []byte("sync:\n  local_root: \"/tmp/b\"\n"), 0o600))
	require.NoError(t, h.Reload(path))
	assert.Equal(t, "/tmp/b", h.Get().Sync.LocalRoot)
}

func TestHolder_ReloadLeavesPreviousConfigOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feishu-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  local_root: \"/tmp/a\"\n"), 0o600))

	h := NewHolder(Defaults())
	require.NoError(t, h.Reload(path))

	require.NoError(t, os.WriteFile(path, []byte("sync: [broken"), 0o600))
	err := h.Reload(path)
	require.Error(t, err)
	assert.Equal(t, "/tmp/a", h.Get().Sync.LocalRoot)
}
