// Package remotetree implements the RemoteTreeIndexer of §4.4: a tree walk
// over the remote namespace (Feishu/Lark Drive has no delta-query API, so
// unlike the teacher's Microsoft Graph delta-paging observer, the remote
// snapshot here is always rebuilt by a fresh walk). It tolerates same-name
// siblings, excludes the recycle folder subtree, and defends against
// accidental cycles with a visited-folder-id set (§9).
package remotetree

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shiver1514/feishu-sync/internal/feishu"
)

// Lister is the minimal remote capability this package depends on — just
// enough to walk the tree, never the mutating operations the engine needs.
type Lister interface {
	ListChildren(ctx context.Context, folderID string) ([]feishu.Item, error)
}

// File is one remote file discovered by Walk.
type File struct {
	RemoteID     string
	Kind         feishu.ItemKind
	Name         string
	Size         int64
	ModifiedTime time.Time
	ParentID     string
	Path         string // slash-joined name path from root
}

// Snapshot is the output of a single Walk.
type Snapshot struct {
	Files   []File
	Folders map[string]string // path -> folder id, "" key is the root
}

// Options configures the walk.
type Options struct {
	// RecycleBinName is excluded, subtree and all, when found directly under
	// the root folder (§4.4).
	RecycleBinName string
	// Concurrency bounds how many sibling folders are listed in parallel.
	Concurrency int
}

// Walk indexes the remote tree rooted at rootID, skipping the recycle
// folder. Same-name siblings are returned as-is; Dedup must run first if
// the caller wants a unique namespace (§4.4, §4.5 P1).
func Walk(ctx context.Context, lister Lister, rootID string, opts Options) (*Snapshot, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	snap := &Snapshot{Folders: map[string]string{"": rootID}}

	var (
		mu      sync.Mutex
		visited = map[string]bool{rootID: true}
	)

	var walkFolder func(ctx context.Context, folderID, relPath string) error
	walkFolder = func(ctx context.Context, folderID, relPath string) error {
		children, err := lister.ListChildren(ctx, folderID)
		if err != nil {
			return fmt.Errorf("listing children of %s: %w", folderID, err)
		}

		var subfolders []File
		mu.Lock()
		for _, c := range children {
			if relPath == "" && opts.RecycleBinName != "" && c.Name == opts.RecycleBinName && c.Kind == feishu.KindFolder {
				continue
			}

			childPath := c.Name
			if relPath != "" {
				childPath = path.Join(relPath, c.Name)
			}

			if c.Kind == feishu.KindFolder {
				snap.Folders[childPath] = c.RemoteID
				f := File{
					RemoteID: c.RemoteID, Kind: c.Kind, Name: c.Name, Size: c.Size,
					ModifiedTime: c.ModifiedTime, ParentID: folderID, Path: childPath,
				}
				if !visited[f.RemoteID] { // defensive cycle guard (§9)
					visited[f.RemoteID] = true
					subfolders = append(subfolders, f)
				}
				continue
			}

			snap.Files = append(snap.Files, File{
				RemoteID: c.RemoteID, Kind: c.Kind, Name: c.Name, Size: c.Size,
				ModifiedTime: c.ModifiedTime, ParentID: folderID, Path: childPath,
			})
		}
		mu.Unlock()

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, sf := range subfolders {
			sf := sf
			g.Go(func() error { return walkFolder(gctx, sf.RemoteID, sf.Path) })
		}
		return g.Wait()
	}

	if err := walkFolder(ctx, rootID, ""); err != nil {
		return nil, err
	}

	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	return snap, nil
}
