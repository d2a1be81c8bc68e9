package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/store"
)

func newTestEngine(t *testing.T, sync config.SyncConfig) (*Engine, *fakeDrive, string) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()
	drive := newFakeDrive()

	e := New(st, drive, SlogSink{Logger: logger}, root, sync, config.DefaultMaxRetryAttempts)
	return e, drive, root
}

func defaultSync() config.SyncConfig {
	return config.SyncConfig{
		DefaultSyncDirection: config.DirectionBidirectional,
		InitialSyncStrategy:  config.InitialLocalWins,
		RemoteRecycleBin:     ".recycle",
		LocalTrashDir:        ".sync_trash",
		RemoteDeleteMode:     config.RemoteDeleteRecycleBin,
	}
}

// S1: first run with initial_sync_strategy=local_wins uploads every local
// file and creates a mapping for each, touching no remote-only state.
func TestFirstRunLocalWinsUploadsEverything(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	summary, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, summary.FatalError)
	assert.Equal(t, 1, summary.Uploaded)

	mappings, err := e.Store.ListLive(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "a.txt", mappings[0].LocalPath)

	_, ok := drive.content[mappings[0].RemoteID]
	assert.True(t, ok)
}

// Rename detection (P4): a mapped local file moves to a new path with
// identical content; the next run must rewrite the mapping in place
// instead of deleting-then-recreating, and rename the remote item.
func TestRenameDetectionUpdatesMappingInPlace(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	_, err := e.Run(context.Background(), false)
	require.NoError(t, err)

	before, err := e.Store.GetByLocalPath(context.Background(), "a.txt")
	require.NoError(t, err)
	remoteID := before.RemoteID

	require.NoError(t, os.Rename(filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")))

	summary, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, summary.FatalError)
	assert.Equal(t, 1, summary.Renamed)

	_, err = e.Store.GetByLocalPath(context.Background(), "a.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)

	after, err := e.Store.GetByLocalPath(context.Background(), "b.txt")
	require.NoError(t, err)
	assert.Equal(t, remoteID, after.RemoteID)

	item, ok := drive.items[remoteID]
	require.True(t, ok)
	assert.Equal(t, "b.txt", item.name)
}

// Rename detection must not fire when the mapping's remote id is already
// gone: a coincidental local hash match with an unrelated new file is not
// evidence of a rename once the remote side is also gone (§8 invariant 2,
// "no silent loss" — P5/P6's both-missing handling owns this case instead).
func TestRenameDetectionSkipsWhenRemoteGone(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	_, err := e.Run(context.Background(), false)
	require.NoError(t, err)

	before, err := e.Store.GetByLocalPath(context.Background(), "a.txt")
	require.NoError(t, err)
	remoteID := before.RemoteID

	// Remote side deleted out-of-band, and the local file also goes missing,
	// replaced by an unrelated new local file with identical content.
	require.NoError(t, drive.HardDelete(context.Background(), remoteID, 0))
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("hello"), 0o644))

	summary, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Renamed)

	after, err := e.Store.GetByLocalPath(context.Background(), "b.txt")
	require.NoError(t, err)
	assert.NotEqual(t, remoteID, after.RemoteID)
}

// S3: both sides changed since last sync, bidirectional policy, remote is
// newer → the remote version wins and overwrites local content.
func TestBothChangedBidirectionalRemoteNewerPulls(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o644))

	_, err := e.Run(context.Background(), false)
	require.NoError(t, err)

	m, err := e.Store.GetByLocalPath(context.Background(), "a.txt")
	require.NoError(t, err)

	// Local edit, old mtime.
	oldTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("local-edit"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), oldTime, oldTime))

	// Remote edit, newer than the local mtime.
	drive.setModified(m.RemoteID, []byte("remote-edit"), time.Now())

	summary, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, summary.FatalError)
	assert.Equal(t, 1, summary.Downloaded)

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "remote-edit", string(got))
}

// S4: a brand-new local file collides with an unmapped remote file at the
// same path → conflict copy, not a silent overwrite either way.
func TestNewLocalCollidesWithUnmappedRemoteProducesConflict(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())

	// Seed a first, ordinary run so the mapping table is non-empty; P3's
	// initial-sync guard only fires on a genuinely empty table, and this
	// scenario is about steady-state reconciliation, not bootstrap.
	require.NoError(t, os.WriteFile(filepath.Join(root, "seed.txt"), []byte("seed"), 0o644))
	_, err := e.Run(context.Background(), false)
	require.NoError(t, err)

	rootID, err := e.Drive.ResolveRoot(context.Background())
	require.NoError(t, err)
	tmp := filepath.Join(t.TempDir(), "remote-src.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("remote-content"), 0o644))
	_, err = drive.Upload(context.Background(), rootID, "a.txt", tmp)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("local-content"), 0o644))

	summary, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, summary.FatalError)
	assert.Equal(t, 1, summary.Conflicts)

	local, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local-content", string(local))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var sawConflictCopy bool
	for _, ent := range entries {
		if strings.Contains(ent.Name(), ".remote_conflict_") {
			sawConflictCopy = true
		}
	}
	assert.True(t, sawConflictCopy)

	mappings, err := e.Store.ListLive(context.Background())
	require.NoError(t, err)
	var sawConflict bool
	for _, m := range mappings {
		if m.Status == store.StatusConflict {
			sawConflict = true
		}
	}
	assert.True(t, sawConflict)
}

// Dry run performs only the LocalScanner and skips every remote mutation.
func TestDryRunSkipsRemoteOperations(t *testing.T) {
	e, drive, root := newTestEngine(t, defaultSync())
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	summary, err := e.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.LocalTotal)
	assert.Equal(t, "dry_run_skips_remote_operations", summary.DryRunNote)
	assert.Empty(t, drive.content)
}
