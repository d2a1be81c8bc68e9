package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shiver1514/feishu-sync/internal/feishu"
)

// fakeDrive is an in-memory RemoteDrive double exercising exactly the
// surface engine needs, used by the reconciliation scenario tests.
type fakeDrive struct {
	mu      sync.Mutex
	nextID  int
	items   map[string]*fakeItem // id -> item
	content map[string][]byte    // id -> file bytes, file items only
}

type fakeItem struct {
	id       string
	kind     feishu.ItemKind
	name     string
	parentID string
	modified time.Time
	size     int64
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		items:   map[string]*fakeItem{"root": {id: "root", kind: feishu.KindFolder, name: ""}},
		content: map[string][]byte{},
	}
}

func (d *fakeDrive) newID() string {
	d.nextID++
	return fmt.Sprintf("id%d", d.nextID)
}

func (d *fakeDrive) ResolveRoot(ctx context.Context) (string, error) {
	return "root", nil
}

func (d *fakeDrive) ListChildren(ctx context.Context, folderID string) ([]feishu.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []feishu.Item
	for _, it := range d.items {
		if it.parentID == folderID {
			out = append(out, feishu.Item{RemoteID: it.id, Kind: it.kind, Name: it.name, Size: it.size, ModifiedTime: it.modified, ParentID: it.parentID})
		}
	}
	return out, nil
}

func (d *fakeDrive) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.newID()
	d.items[id] = &fakeItem{id: id, kind: feishu.KindFolder, name: name, parentID: parentID, modified: time.Now()}
	return id, nil
}

func (d *fakeDrive) Upload(ctx context.Context, parentID, name, path string) (feishu.UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return feishu.UploadResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.newID()
	d.items[id] = &fakeItem{id: id, kind: feishu.KindFile, name: name, parentID: parentID, modified: time.Now(), size: int64(len(data))}
	d.content[id] = data
	return feishu.UploadResult{RemoteID: id, Revision: "1"}, nil
}

func (d *fakeDrive) Download(ctx context.Context, remoteID, destPath string) error {
	d.mu.Lock()
	data, ok := d.content[remoteID]
	d.mu.Unlock()
	if !ok {
		return feishu.ErrRemoteGone
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (d *fakeDrive) Rename(ctx context.Context, remoteID, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.items[remoteID]
	if !ok {
		return feishu.ErrRemoteGone
	}
	it.name = newName
	return nil
}

func (d *fakeDrive) Move(ctx context.Context, remoteID string, kind feishu.ItemKind, newParentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.items[remoteID]
	if !ok {
		return feishu.ErrRemoteGone
	}
	it.parentID = newParentID
	return nil
}

func (d *fakeDrive) HardDelete(ctx context.Context, remoteID string, kind feishu.ItemKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, remoteID)
	delete(d.content, remoteID)
	return nil
}

// setModified lets a test simulate a remote-side edit without going through
// Upload (which would mint a new id).
func (d *fakeDrive) setModified(remoteID string, data []byte, when time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content[remoteID] = data
	if it, ok := d.items[remoteID]; ok {
		it.modified = when
		it.size = int64(len(data))
	}
}
