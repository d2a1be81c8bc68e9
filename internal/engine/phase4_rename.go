package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
)

// phase4RenameDetection implements §4.5 P4: a mapping whose local file is
// missing, whose remote id still exists, and whose content hash matches
// exactly one currently-unmapped local file is a rename, not a
// delete-then-create.
func (e *Engine) phase4RenameDetection(ctx context.Context, localScan *localscan.Result, remoteSnap *remotetree.Snapshot, summary *RunSummary) error {
	mappings, err := e.Store.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings for rename detection: %w", err)
	}

	remoteIDs := make(map[string]bool, len(remoteSnap.Files))
	for _, f := range remoteSnap.Files {
		remoteIDs[f.RemoteID] = true
	}

	mappedPaths := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mappedPaths[m.LocalPath] = true
	}

	unmappedByHash := map[string][]string{}
	for rel, entry := range localScan.Files {
		if !mappedPaths[rel] {
			unmappedByHash[entry.SHA256] = append(unmappedByHash[entry.SHA256], rel)
		}
	}

	for _, m := range mappings {
		if _, stillThere := localScan.Files[m.LocalPath]; stillThere {
			continue // local file not missing; not a rename candidate
		}
		if !remoteIDs[m.RemoteID] {
			continue // remote side gone too; P5/P6's both-missing case handles this, not a rename
		}

		candidates := unmappedByHash[m.LocalHash]
		if len(candidates) != 1 {
			continue // zero or ambiguous matches; leave for P5/P6 to handle
		}
		newPath := candidates[0]

		oldPath := m.LocalPath
		m.LocalPath = newPath
		if err := e.Store.UpsertFileMapping(ctx, &m); err != nil {
			return fmt.Errorf("updating mapping for detected rename %s -> %s: %w", oldPath, newPath, err)
		}

		if baseName(newPath) != baseName(oldPath) {
			if err := e.Drive.Rename(ctx, m.RemoteID, baseName(newPath)); err != nil {
				// Keep the mapping change. The remote item keeps its old name:
				// no later pass renames it, since the local file is no longer
				// missing and so is not a rename candidate again.
				e.Log.Emit(slog.LevelWarn, "rename", "remote rename failed after local rename detected", map[string]any{
					"remote_id": m.RemoteID, "old": oldPath, "new": newPath, "err": err.Error(),
				})
				continue
			}
		}

		summary.Renamed++
		// This path is now claimed; drop it so no other mapping later in this
		// loop can also claim it as its rename target.
		delete(unmappedByHash, m.LocalHash)
	}

	return nil
}
