package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// Engine is the ReconciliationEngine of §4.5 — the exclusive writer to the
// StateStore during a run (§3 "Ownership").
type Engine struct {
	Store *store.Store
	Drive RemoteDrive
	Log   LogSink

	LocalRoot        string
	FixedRoot        string // the scope-enforced allowed root (§6)
	Sync             config.SyncConfig
	MaxRetryAttempts int

	// remoteFolderCache caches (parent_id, name) -> child_id within a run to
	// avoid O(N^2) listings while building the directory skeleton (§4.5 P2),
	// and also serves as the recycle-bin auto-provisioning cache mirroring
	// the source's _remote_folder_cache.
	remoteFolderCache map[string]string

	// suppressDeletes is set for the duration of one Run when P3 determines
	// this pass is a dry_run initial sync (§4.5 P3).
	suppressDeletes bool
}

// New builds an Engine ready to run.
func New(st *store.Store, drive RemoteDrive, log LogSink, localRoot string, sync config.SyncConfig, maxRetry int) *Engine {
	return &Engine{
		Store: st, Drive: drive, Log: log,
		LocalRoot: localRoot, FixedRoot: localRoot, Sync: sync,
		MaxRetryAttempts: maxRetry,
	}
}

// Run executes one full reconciliation pass: phases P0 through P8, except
// that P3's initial-sync guard is computed before P2 so that P2 works from
// the guarded local snapshot.
// dryRun, when true, performs LocalScanner only and skips every remote
// mutation (§4.7 Manual trigger dry_run mode).
func (e *Engine) Run(ctx context.Context, dryRun bool) (*RunSummary, error) {
	e.remoteFolderCache = map[string]string{}
	runID := newRunID()
	summary := &RunSummary{RunID: runID, DryRun: dryRun}
	e.Log.Emit(slog.LevelInfo, "engine", "run started", map[string]any{"run_id": runID, "dry_run": dryRun})
	defer func() {
		e.Log.Emit(slog.LevelInfo, "engine", "run finished", map[string]any{"run_id": runID, "summary": summary.HumanLine(), "fatal_error": summary.FatalError})
	}()

	runType := "scheduled"
	if dryRun {
		runType = "dry_run"
	}
	runRowID, startErr := e.Store.StartRun(ctx, runID, runType, time.Now())
	if startErr != nil {
		e.Log.Emit(slog.LevelWarn, "engine", "failed to record sync_runs start", map[string]any{"run_id": runID, "err": startErr.Error()})
	} else {
		defer func() {
			status := store.RunSuccess
			if summary.FatalError != "" {
				status = store.RunFailed
			}
			if err := e.Store.FinishRun(ctx, runRowID, status, time.Now(), summary.JSON()); err != nil {
				e.Log.Emit(slog.LevelWarn, "engine", "failed to record sync_runs finish", map[string]any{"run_id": runID, "err": err.Error()})
			}
		}()
	}

	effectiveRoot, warning := enforceScope(e.FixedRoot, e.LocalRoot)
	e.LocalRoot = effectiveRoot
	if warning != "" {
		summary.ScopeWarning = warning
		e.Log.Emit(slog.LevelWarn, "engine", "local root scope mismatch", map[string]any{"warning": warning})
	}

	if dryRun {
		scan, err := localscan.Scan(e.LocalRoot, localscan.Options{
			ExcludeDirs: e.Sync.ExcludeDirs, ExcludeHiddenDirs: e.Sync.ExcludeHiddenDirs, ExcludeHiddenFiles: e.Sync.ExcludeHiddenFiles,
		})
		if err != nil {
			summary.FatalError = err.Error()
			return summary, nil
		}
		summary.LocalTotal = len(scan.Files)
		summary.DryRunNote = "dry_run_skips_remote_operations"
		return summary, nil
	}

	if err := e.phase0DrainRetries(ctx, summary); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	rootID, err := e.resolveRoot(ctx)
	if err != nil {
		summary.FatalError = fmt.Sprintf("%s: %v", ErrUnresolvableRoot, err)
		return summary, nil
	}
	summary.RemoteRootID = rootID

	if err := e.phase1Dedup(ctx, rootID); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	localScan, err := localscan.Scan(e.LocalRoot, localscan.Options{
		ExcludeDirs: e.Sync.ExcludeDirs, ExcludeHiddenDirs: e.Sync.ExcludeHiddenDirs, ExcludeHiddenFiles: e.Sync.ExcludeHiddenFiles,
	})
	if err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}
	summary.LocalTotal = len(localScan.Files)
	summary.Errors += localScan.Errors

	remoteSnap, err := remotetree.Walk(ctx, e.Drive, rootID, remotetree.Options{RecycleBinName: e.Sync.RemoteRecycleBin})
	if err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}
	summary.RemoteTotal = len(remoteSnap.Files)

	mappingsEmpty, err := e.mappingsEmpty(ctx)
	if err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}
	effectiveLocal, effectiveRemote := e.phase3InitialSyncGuard(mappingsEmpty, localScan, remoteSnap)

	if err := e.phase2EnsureSkeleton(ctx, rootID, effectiveLocal, remoteSnap); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	if err := e.phase4RenameDetection(ctx, effectiveLocal, effectiveRemote, summary); err != nil {
		summary.Errors++
		e.Log.Emit(slog.LevelWarn, "engine", "rename detection phase error", map[string]any{"err": err.Error()})
	}

	if err := e.phase5Reconcile(ctx, effectiveLocal, effectiveRemote, summary); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	if err := e.phase6NewLocal(ctx, rootID, effectiveLocal, effectiveRemote, summary); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	if err := e.phase7NewRemote(ctx, effectiveRemote, summary); err != nil {
		summary.FatalError = err.Error()
		return summary, nil
	}

	if e.Sync.CleanupEmptyRemoteDirs || e.Sync.CleanupRemoteMissingDirsRecursive {
		if err := e.phase8Cleanup(ctx, effectiveLocal, summary); err != nil {
			e.Log.Emit(slog.LevelWarn, "engine", "cleanup phase error", map[string]any{"err": err.Error()})
		}
	}

	return summary, nil
}

func (e *Engine) mappingsEmpty(ctx context.Context) (bool, error) {
	live, err := e.Store.ListLive(ctx)
	if err != nil {
		return false, fmt.Errorf("checking mapping table: %w", err)
	}
	return len(live) == 0, nil
}

func (e *Engine) resolveRoot(ctx context.Context) (string, error) {
	if e.remoteFolderCache["__root__"] != "" {
		return e.remoteFolderCache["__root__"], nil
	}
	id, err := e.Drive.ResolveRoot(ctx)
	if err != nil {
		return "", err
	}
	e.remoteFolderCache["__root__"] = id
	return id, nil
}

// newRunID mints an id for correlating log lines within one run, using
// google/uuid as the teacher does for session/plan identifiers.
func newRunID() string { return uuid.NewString() }

// ErrUnresolvableRoot wraps a failure to resolve the remote root folder.
var ErrUnresolvableRoot = fmt.Errorf("engine: could not resolve remote root")
