package engine

import (
	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
)

// phase3InitialSyncGuard implements §4.5 P3. When the mapping table is
// empty, sync.initial_sync_strategy overrides which side later phases
// "see": local_wins blanks the remote file list (only uploads happen),
// remote_wins blanks the local file list (only downloads happen), and
// dry_run leaves both snapshots intact but sets e.suppressDeletes so P5
// performs no side-deletion this pass. P8's opt-in folder cleanup does not
// consult e.suppressDeletes.
func (e *Engine) phase3InitialSyncGuard(mappingsEmpty bool, localScan *localscan.Result, remoteSnap *remotetree.Snapshot) (*localscan.Result, *remotetree.Snapshot) {
	e.suppressDeletes = false
	if !mappingsEmpty {
		return localScan, remoteSnap
	}

	switch e.Sync.InitialSyncStrategy {
	case config.InitialLocalWins:
		return localScan, &remotetree.Snapshot{Folders: remoteSnap.Folders}
	case config.InitialRemoteWins:
		return &localscan.Result{Dirs: localScan.Dirs, Files: map[string]localscan.FileEntry{}}, remoteSnap
	case config.InitialDryRun:
		e.suppressDeletes = true
		return localScan, remoteSnap
	default:
		return localScan, remoteSnap
	}
}
