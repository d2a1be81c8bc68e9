package engine

import (
	"context"
	"fmt"
	"path"

	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
)

// phase2EnsureSkeleton implements §4.5 P2: for every local directory in the
// snapshot, ensure a corresponding remote folder exists, creating missing
// ones depth-first (localScan.Dirs is already sorted, so every ancestor
// precedes its descendants), caching (parent_id, name) -> child_id in
// e.remoteFolderCache to avoid O(N^2) listings.
func (e *Engine) phase2EnsureSkeleton(ctx context.Context, rootID string, localScan *localscan.Result, remoteSnap *remotetree.Snapshot) error {
	idByPath := map[string]string{"": rootID}
	for p, id := range remoteSnap.Folders {
		idByPath[p] = id
	}

	for _, dir := range localScan.Dirs {
		if _, ok := idByPath[dir]; ok {
			if err := e.Store.UpsertFolderMapping(ctx, dir, idByPath[dir]); err != nil {
				return fmt.Errorf("recording folder mapping for %s: %w", dir, err)
			}
			continue
		}

		parent := path.Dir(dir)
		if parent == "." {
			parent = ""
		}
		parentID, ok := idByPath[parent]
		if !ok {
			return fmt.Errorf("engine: ancestor %q of %q was not created before its child (scan order invariant violated)", parent, dir)
		}

		name := path.Base(dir)
		cacheKey := parentID + "/" + name
		childID, cached := e.remoteFolderCache[cacheKey]
		if !cached {
			id, err := e.Drive.CreateFolder(ctx, parentID, name)
			if err != nil {
				return fmt.Errorf("creating remote folder %s: %w", dir, err)
			}
			childID = id
			e.remoteFolderCache[cacheKey] = childID
		}

		idByPath[dir] = childID
		if err := e.Store.UpsertFolderMapping(ctx, dir, childID); err != nil {
			return fmt.Errorf("recording folder mapping for %s: %w", dir, err)
		}
	}

	return nil
}
