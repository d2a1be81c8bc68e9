package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertFileMappingInsertsThenUpdatesByLocalPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &FileMapping{LocalPath: "a.txt", RemoteID: "R1", RemoteKind: "file", LocalHash: "H1", LocalMTime: time.Now()}
	require.NoError(t, s.UpsertFileMapping(ctx, m))
	assert.NotZero(t, m.ID)

	m2 := &FileMapping{LocalPath: "a.txt", RemoteID: "R1", RemoteKind: "file", LocalHash: "H2", LocalMTime: time.Now()}
	require.NoError(t, s.UpsertFileMapping(ctx, m2))
	assert.Equal(t, m.ID, m2.ID)

	got, err := s.GetByLocalPath(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "H2", got.LocalHash)

	live, err := s.ListLive(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestUpsertFileMappingMatchesByRemoteIDWhenLocalPathChanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &FileMapping{LocalPath: "old.md", RemoteID: "R1", RemoteKind: "file", LocalHash: "H"}
	require.NoError(t, s.UpsertFileMapping(ctx, m))

	renamed := &FileMapping{LocalPath: "new.md", RemoteID: "R1", RemoteKind: "file", LocalHash: "H"}
	require.NoError(t, s.UpsertFileMapping(ctx, renamed))
	assert.Equal(t, m.ID, renamed.ID)

	_, err := s.GetByLocalPath(ctx, "old.md")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetByLocalPath(ctx, "new.md")
	require.NoError(t, err)
	assert.Equal(t, "R1", got.RemoteID)
}

func TestMarkDeletedExcludesFromLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &FileMapping{LocalPath: "a.txt", RemoteID: "R1"}
	require.NoError(t, s.UpsertFileMapping(ctx, m))
	require.NoError(t, s.InsertTombstone(ctx, &Tombstone{Side: SideLocal, LocalPath: "a.txt", Reason: ReasonBothMissing}))
	require.NoError(t, s.MarkDeleted(ctx, m.ID))

	live, err := s.ListLive(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)

	tombstones, err := s.ListTombstones(ctx)
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	assert.Equal(t, ReasonBothMissing, tombstones[0].Reason)
}

func TestRetryQueueDrainOrderAndDiscard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	e := &RetryEntry{Opcode: OpUpload, Payload: `{"rel":"a.txt"}`, NextRetryAt: now.Add(-time.Minute)}
	require.NoError(t, s.InsertRetry(ctx, e))

	due, err := s.ListDue(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, OpUpload, due[0].Opcode)

	require.NoError(t, s.RescheduleRetry(ctx, e.ID, now.Add(time.Hour), "boom"))
	due2, err := s.ListDue(ctx, now, 50)
	require.NoError(t, err)
	assert.Empty(t, due2)

	require.NoError(t, s.DeleteRetry(ctx, e.ID))
	due3, err := s.ListDue(ctx, now.Add(2*time.Hour), 50)
	require.NoError(t, err)
	assert.Empty(t, due3)
}

func TestSyncRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.StartRun(ctx, "run-123", "manual", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.FinishRun(ctx, id, RunSuccess, time.Now(), `{"uploaded":1}`))

	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-123", last.RunID)
	assert.Equal(t, RunSuccess, last.Status)
	assert.Equal(t, `{"uploaded":1}`, last.SummaryJSON)
}
