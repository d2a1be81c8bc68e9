package engine

import (
	"context"
	"fmt"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/feishu"
)

const recycleBinCacheKey = "__recycle_bin__"

// softDeleteRemote implements the remote half of §4.5's soft-delete
// semantics: recycle_bin mode moves the item into the (auto-provisioned,
// cached) recycle folder; hard_delete mode removes it outright. The
// recycle folder itself is never a candidate for P8 cleanup (§4.5 P8,
// remotetree.Options.RecycleBinName excludes its subtree from every walk).
func (e *Engine) softDeleteRemote(ctx context.Context, remoteID string, kind feishu.ItemKind) error {
	if e.Sync.RemoteDeleteMode == config.RemoteDeleteHard || e.Sync.RemoteRecycleBin == "" {
		return e.Drive.HardDelete(ctx, remoteID, kind)
	}

	binID, err := e.recycleBinID(ctx)
	if err != nil {
		return err
	}
	return e.Drive.Move(ctx, remoteID, kind, binID)
}

// recycleBinID resolves the recycle folder under the remote root, creating
// it on first use and caching the id for the rest of the run.
func (e *Engine) recycleBinID(ctx context.Context) (string, error) {
	if id, ok := e.remoteFolderCache[recycleBinCacheKey]; ok {
		return id, nil
	}

	rootID, err := e.resolveRoot(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving root before provisioning recycle bin: %w", err)
	}

	children, err := e.Drive.ListChildren(ctx, rootID)
	if err != nil {
		return "", fmt.Errorf("listing root children to find recycle bin: %w", err)
	}
	for _, c := range children {
		if c.Kind == feishu.KindFolder && c.Name == e.Sync.RemoteRecycleBin {
			e.remoteFolderCache[recycleBinCacheKey] = c.RemoteID
			return c.RemoteID, nil
		}
	}

	id, err := e.Drive.CreateFolder(ctx, rootID, e.Sync.RemoteRecycleBin)
	if err != nil {
		return "", fmt.Errorf("creating recycle bin folder: %w", err)
	}
	e.remoteFolderCache[recycleBinCacheKey] = id
	return id, nil
}
