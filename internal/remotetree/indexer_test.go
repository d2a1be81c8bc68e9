package remotetree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiver1514/feishu-sync/internal/feishu"
)

// fakeDrive is an in-memory Lister+ListerDeleter keyed by folder id.
type fakeDrive struct {
	children map[string][]feishu.Item
	deleted  map[string]bool
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{children: map[string][]feishu.Item{}, deleted: map[string]bool{}}
}

func (f *fakeDrive) ListChildren(_ context.Context, folderID string) ([]feishu.Item, error) {
	var out []feishu.Item
	for _, c := range f.children[folderID] {
		if !f.deleted[c.RemoteID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDrive) HardDelete(_ context.Context, remoteID string, _ feishu.ItemKind) error {
	f.deleted[remoteID] = true
	return nil
}

func TestWalkSkipsRecycleBinAndHandlesSiblings(t *testing.T) {
	drive := newFakeDrive()
	now := time.Now()
	drive.children["root"] = []feishu.Item{
		{RemoteID: "recycle", Kind: feishu.KindFolder, Name: ".recycle", ParentID: "root"},
		{RemoteID: "d1", Kind: feishu.KindFolder, Name: "docs", ParentID: "root"},
		{RemoteID: "f1", Kind: feishu.KindFile, Name: "a.txt", ModifiedTime: now, ParentID: "root"},
	}
	drive.children["d1"] = []feishu.Item{
		{RemoteID: "f2", Kind: feishu.KindFile, Name: "b.txt", ModifiedTime: now, ParentID: "d1"},
	}
	drive.children["recycle"] = []feishu.Item{
		{RemoteID: "trash1", Kind: feishu.KindFile, Name: "should-not-appear.txt", ParentID: "recycle"},
	}

	snap, err := Walk(context.Background(), drive, "root", Options{RecycleBinName: ".recycle"})
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"a.txt", "docs/b.txt"}, paths)
	assert.Equal(t, "d1", snap.Folders["docs"])
	assert.Equal(t, "root", snap.Folders[""])
}

func TestDedupKeepsNewestAndDeletesRest(t *testing.T) {
	drive := newFakeDrive()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	drive.children["root"] = []feishu.Item{
		{RemoteID: "r2", Kind: feishu.KindFile, Name: "a.txt", ModifiedTime: newer, ParentID: "root"},
		{RemoteID: "r1", Kind: feishu.KindFile, Name: "a.txt", ModifiedTime: older, ParentID: "root"},
	}

	result, err := Dedup(context.Background(), drive, "root", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.GroupsDeduped)
	assert.Equal(t, 1, result.Deleted)
	assert.True(t, drive.deleted["r1"])
	assert.False(t, drive.deleted["r2"])
}

func TestDedupTieBreakIsDeterministic(t *testing.T) {
	drive := newFakeDrive()
	tie := time.Now()

	drive.children["root"] = []feishu.Item{
		{RemoteID: "zzz", Kind: feishu.KindFile, Name: "a.txt", ModifiedTime: tie, ParentID: "root"},
		{RemoteID: "aaa", Kind: feishu.KindFile, Name: "a.txt", ModifiedTime: tie, ParentID: "root"},
	}

	_, err := Dedup(context.Background(), drive, "root", Options{})
	require.NoError(t, err)

	assert.False(t, drive.deleted["aaa"], "lexicographically smallest id should survive")
	assert.True(t, drive.deleted["zzz"])
}

func TestDedupIdempotentOnSecondRun(t *testing.T) {
	drive := newFakeDrive()
	now := time.Now()
	drive.children["root"] = []feishu.Item{
		{RemoteID: "a", Kind: feishu.KindFile, Name: "x.txt", ModifiedTime: now, ParentID: "root"},
	}

	result1, err := Dedup(context.Background(), drive, "root", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result1.GroupsDeduped)

	result2, err := Dedup(context.Background(), drive, "root", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result2.GroupsDeduped)
}
