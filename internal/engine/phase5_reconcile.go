package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// phase5Reconcile implements §4.5 P5: classify every live mapping against
// the effective local/remote snapshots and apply the policy-driven action.
func (e *Engine) phase5Reconcile(ctx context.Context, localScan *localscan.Result, remoteSnap *remotetree.Snapshot, summary *RunSummary) error {
	mappings, err := e.Store.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings for reconciliation: %w", err)
	}

	remoteByID := make(map[string]remotetree.File, len(remoteSnap.Files))
	for _, f := range remoteSnap.Files {
		remoteByID[f.RemoteID] = f
	}

	dir := e.Sync.DefaultSyncDirection

	for _, m := range mappings {
		localEntry, localPresent := localScan.Files[m.LocalPath]
		remoteEntry, remotePresent := remoteByID[m.RemoteID]

		switch {
		case !localPresent && remotePresent:
			if err := e.reconcileLocalMissing(ctx, m, remoteEntry, dir, summary); err != nil {
				summary.Errors++
			}

		case localPresent && !remotePresent:
			if err := e.reconcileRemoteMissing(ctx, m, localEntry, dir, summary); err != nil {
				summary.Errors++
			}

		case !localPresent && !remotePresent:
			if err := e.reconcileBothMissing(ctx, m, summary); err != nil {
				summary.Errors++
			}

		default:
			if err := e.reconcileBothPresent(ctx, m, localEntry, remoteEntry, dir, summary); err != nil {
				summary.Errors++
			}
		}
	}

	return nil
}

func (e *Engine) reconcileLocalMissing(ctx context.Context, m store.FileMapping, remoteEntry remotetree.File, dir config.SyncDirection, summary *RunSummary) error {
	switch dir {
	case config.DirectionRemoteWins:
		return e.pull(ctx, &m, remoteEntry, summary)
	case config.DirectionLocalWins:
		if e.suppressDeletes {
			return nil
		}
		// §9 open question: this conflates "never existed locally" with "was
		// deleted locally"; the ambiguity is preserved and surfaced via the
		// tombstone reason code rather than resolved silently.
		return e.deleteRemoteForMapping(ctx, m, store.ReasonLocalWinsAmbiguous, summary)
	default: // bidirectional
		newFingerprint := RemoteFingerprint(remoteEntry.ModifiedTime, remoteEntry.Size)
		if newFingerprint != m.RemoteHash {
			return e.pull(ctx, &m, remoteEntry, summary)
		}
		if e.suppressDeletes {
			return nil
		}
		return e.deleteRemoteForMapping(ctx, m, store.ReasonLocalWinsAmbiguous, summary)
	}
}

func (e *Engine) reconcileRemoteMissing(ctx context.Context, m store.FileMapping, localEntry localscan.FileEntry, dir config.SyncDirection, summary *RunSummary) error {
	switch dir {
	case config.DirectionRemoteWins:
		if e.suppressDeletes {
			return nil
		}
		return e.deleteLocalForMapping(ctx, m, summary)
	case config.DirectionLocalWins:
		return e.reupload(ctx, &m, localEntry, summary)
	default: // bidirectional
		if localEntry.SHA256 != m.LocalHash {
			return e.reupload(ctx, &m, localEntry, summary)
		}
		if e.suppressDeletes {
			return nil
		}
		return e.deleteLocalForMapping(ctx, m, summary)
	}
}

func (e *Engine) reconcileBothMissing(ctx context.Context, m store.FileMapping, summary *RunSummary) error {
	if e.suppressDeletes {
		return nil
	}
	reason := store.ReasonBothMissing
	if err := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideLocal, LocalPath: m.LocalPath, RemoteID: m.RemoteID, Reason: reason}); err != nil {
		return fmt.Errorf("tombstoning both-missing mapping %d: %w", m.ID, err)
	}
	if err := e.Store.MarkDeleted(ctx, m.ID); err != nil {
		return fmt.Errorf("marking both-missing mapping %d deleted: %w", m.ID, err)
	}
	return nil
}

func (e *Engine) reconcileBothPresent(ctx context.Context, m store.FileMapping, localEntry localscan.FileEntry, remoteEntry remotetree.File, dir config.SyncDirection, summary *RunSummary) error {
	localChanged := localEntry.SHA256 != m.LocalHash
	remoteFingerprint := RemoteFingerprint(remoteEntry.ModifiedTime, remoteEntry.Size)
	remoteChanged := remoteFingerprint != m.RemoteHash

	switch {
	case !localChanged && !remoteChanged:
		return nil

	case localChanged && !remoteChanged:
		return e.reupload(ctx, &m, localEntry, summary)

	case !localChanged && remoteChanged:
		return e.pull(ctx, &m, remoteEntry, summary)

	default: // both changed
		switch dir {
		case config.DirectionRemoteWins:
			return e.pull(ctx, &m, remoteEntry, summary)
		case config.DirectionLocalWins:
			return e.reupload(ctx, &m, localEntry, summary)
		default:
			if remoteNewer(localEntry, remoteEntry) {
				return e.pull(ctx, &m, remoteEntry, summary)
			}
			return e.reupload(ctx, &m, localEntry, summary)
		}
	}
}

// remoteNewer compares local mtime (seconds) to remote modified_time; a tie
// favors the remote (§4.5 P5 "tie → remote wins").
func remoteNewer(localEntry localscan.FileEntry, remoteEntry remotetree.File) bool {
	localTime := time.Unix(localEntry.ModTime, 0).UTC()
	return !remoteEntry.ModifiedTime.Before(localTime)
}

// pull downloads remoteEntry into m.LocalPath atomically and updates the
// mapping. A download that fails because the item was deleted remotely
// between the walk and the download (§4.6 "remote gone") is tombstoned and
// dropped immediately rather than retried; any other failure is enqueued
// as a retry here and returned, and the caller counts it as an error.
func (e *Engine) pull(ctx context.Context, m *store.FileMapping, remoteEntry remotetree.File, summary *RunSummary) error {
	tmp := filepath.Join(e.LocalRoot, filepath.FromSlash(m.LocalPath)) + ".part"
	if err := e.Drive.Download(ctx, remoteEntry.RemoteID, tmp); err != nil {
		if errors.Is(err, feishu.ErrRemoteGone) {
			return e.tombstoneGoneRemote(ctx, m, summary)
		}
		return e.enqueueRetry(ctx, store.OpPull, RetryPayload{Pull: &PullPayload{LocalPath: m.LocalPath, RemoteID: remoteEntry.RemoteID, Kind: remoteEntry.Kind}}, err)
	}
	if err := atomicRenameInto(e.LocalRoot, m.LocalPath, tmp); err != nil {
		return err
	}

	sum, err := hashLocalFile(filepath.Join(e.LocalRoot, filepath.FromSlash(m.LocalPath)))
	if err != nil {
		return err
	}

	m.LocalHash = sum
	m.RemoteHash = RemoteFingerprint(remoteEntry.ModifiedTime, remoteEntry.Size)
	m.LocalMTime = time.Now()
	m.RemoteModified = remoteEntry.ModifiedTime
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("updating mapping after pull: %w", err)
	}

	summary.Downloaded++
	summary.DownloadedBytes += remoteEntry.Size
	return nil
}

// reupload uploads localEntry, replacing the previous remote id only after
// the new upload is confirmed (§4.5 "upload atomicity").
func (e *Engine) reupload(ctx context.Context, m *store.FileMapping, localEntry localscan.FileEntry, summary *RunSummary) error {
	folderID, err := e.parentFolderID(ctx, m.LocalPath)
	if err != nil {
		return err
	}

	full := filepath.Join(e.LocalRoot, filepath.FromSlash(m.LocalPath))
	result, err := e.Drive.Upload(ctx, folderID, baseName(m.LocalPath), full)
	if err != nil {
		return e.enqueueRetry(ctx, store.OpUpload, RetryPayload{Upload: &UploadPayload{LocalPath: m.LocalPath, ReplaceRemote: m.RemoteID, FolderRemoteID: folderID}}, err)
	}

	oldRemoteID := m.RemoteID
	if oldRemoteID != "" && oldRemoteID != result.RemoteID {
		_ = e.Drive.HardDelete(ctx, oldRemoteID, feishu.KindFile)
	}

	m.RemoteID = result.RemoteID
	m.LocalHash = localEntry.SHA256
	m.LocalMTime = time.Unix(localEntry.ModTime, 0).UTC()
	m.RemoteHash = RemoteFingerprint(time.Now(), localEntry.Size)
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("updating mapping after upload: %w", err)
	}

	summary.Uploaded++
	summary.UploadedBytes += localEntry.Size
	return nil
}

func (e *Engine) deleteRemoteForMapping(ctx context.Context, m store.FileMapping, reason string, summary *RunSummary) error {
	if err := e.softDeleteRemote(ctx, m.RemoteID, feishu.KindFile); err != nil {
		return e.enqueueRetry(ctx, store.OpDeleteRemote, RetryPayload{DeleteRemote: &DeleteRemotePayload{RemoteID: m.RemoteID, Kind: feishu.KindFile}}, err)
	}
	if err := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, LocalPath: m.LocalPath, RemoteID: m.RemoteID, Reason: reason}); err != nil {
		return err
	}
	if err := e.Store.MarkDeleted(ctx, m.ID); err != nil {
		return err
	}
	summary.RemoteSoftDeleted++
	return nil
}

func (e *Engine) deleteLocalForMapping(ctx context.Context, m store.FileMapping, summary *RunSummary) error {
	if err := softDeleteLocal(e.LocalRoot, e.Sync.LocalTrashDir, m.LocalPath, time.Now()); err != nil {
		return e.enqueueRetry(ctx, store.OpDeleteLocal, RetryPayload{DeleteLocal: &DeleteLocalPayload{LocalPath: m.LocalPath}}, err)
	}
	if err := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideLocal, LocalPath: m.LocalPath, RemoteID: m.RemoteID, Reason: store.ReasonRemoteDeleted}); err != nil {
		return err
	}
	if err := e.Store.MarkDeleted(ctx, m.ID); err != nil {
		return err
	}
	summary.LocalSoftDeleted++
	return nil
}

// tombstoneGoneRemote records a SideRemote tombstone and drops m's mapping
// when a live operation discovers the remote item is already gone, mirroring
// phase0DrainRetries' RemoteGone handling for the retry-queue path.
func (e *Engine) tombstoneGoneRemote(ctx context.Context, m *store.FileMapping, summary *RunSummary) error {
	if err := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, LocalPath: m.LocalPath, RemoteID: m.RemoteID, Reason: store.ReasonRemoteGone}); err != nil {
		return fmt.Errorf("tombstoning gone remote item for mapping %d: %w", m.ID, err)
	}
	if err := e.Store.MarkDeleted(ctx, m.ID); err != nil {
		return fmt.Errorf("marking gone-remote mapping %d deleted: %w", m.ID, err)
	}
	summary.RemoteSoftDeleted++
	return nil
}

// parentFolderID resolves the remote folder id for relPath's directory via
// the folder_mappings table populated by P2.
func (e *Engine) parentFolderID(ctx context.Context, relPath string) (string, error) {
	dir := path.Dir(relPath)
	if dir == "." {
		return e.resolveRoot(ctx)
	}
	fm, err := e.Store.GetFolderByLocalDir(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("resolving folder mapping for %s: %w", dir, err)
	}
	return fm.RemoteID, nil
}

// enqueueRetry persists a retry entry keyed by operation kind and payload
// and returns cause, so the caller increments the error counter (§4.5
// "Error routing inside the engine").
func (e *Engine) enqueueRetry(ctx context.Context, opcode store.RetryOpcode, payload RetryPayload, cause error) error {
	serialized, err := payload.Marshal()
	if err != nil {
		return err
	}
	entry := &store.RetryEntry{
		Opcode:      opcode,
		Payload:     serialized,
		NextRetryAt: time.Now().Add(backoffDelay(0, false)),
		LastError:   cause.Error(),
	}
	if insErr := e.Store.InsertRetry(ctx, entry); insErr != nil {
		return fmt.Errorf("enqueuing retry for %s: %w (original error: %v)", opcode, insErr, cause)
	}
	return cause
}
