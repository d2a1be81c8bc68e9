package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/localscan"
)

// phase8Cleanup implements §4.5 P8: delete tracked remote folders that no
// longer have a local counterpart, when the operator opted in. Harmless
// empties are handled by cleanup_empty_remote_dirs; non-empty missing
// trees require cleanup_remote_missing_dirs_recursive. The recycle folder
// is never a candidate (it lives directly under root by name and is
// excluded from every walk already; this phase double-checks by name for
// the case where it was also recorded as a FolderMapping).
func (e *Engine) phase8Cleanup(ctx context.Context, localScan *localscan.Result, summary *RunSummary) error {
	localDirs := make(map[string]bool, len(localScan.Dirs))
	for _, d := range localScan.Dirs {
		localDirs[d] = true
	}

	folders, err := e.Store.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("listing folder mappings for cleanup: %w", err)
	}

	for _, fm := range folders {
		if fm.LocalDir == "" || localDirs[fm.LocalDir] {
			continue
		}
		if baseName(fm.LocalDir) == e.Sync.RemoteRecycleBin {
			continue
		}

		children, err := e.Drive.ListChildren(ctx, fm.RemoteID)
		if err != nil {
			e.Log.Emit(slog.LevelWarn, "cleanup", "failed to list children of candidate cleanup folder", map[string]any{"local_dir": fm.LocalDir, "err": err.Error()})
			continue
		}

		empty := len(children) == 0
		shouldDelete := (empty && e.Sync.CleanupEmptyRemoteDirs) || (!empty && e.Sync.CleanupRemoteMissingDirsRecursive)
		if !shouldDelete {
			continue
		}

		if err := e.Drive.HardDelete(ctx, fm.RemoteID, feishu.KindFolder); err != nil {
			e.Log.Emit(slog.LevelWarn, "cleanup", "failed to delete remote folder with no local counterpart", map[string]any{"local_dir": fm.LocalDir, "err": err.Error()})
			summary.Errors++
			continue
		}

		if err := e.Store.DeleteFolderMapping(ctx, fm.ID); err != nil {
			e.Log.Emit(slog.LevelWarn, "cleanup", "failed to remove stale folder mapping after remote delete", map[string]any{"local_dir": fm.LocalDir, "err": err.Error()})
		}

		summary.RemoteFoldersCleaned++
		e.Log.Emit(slog.LevelInfo, "cleanup", "deleted remote folder with no local counterpart", map[string]any{
			"local_dir": fm.LocalDir, "remote_id": fm.RemoteID, "was_empty": empty,
		})
	}

	return nil
}
