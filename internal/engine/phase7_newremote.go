package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// phase7NewRemote implements §4.5 P7: a remote file with no mapping either
// collides with a local file already sitting at the same path (same
// conflict-copy handling as P6) or is brand new (pull, create mapping).
func (e *Engine) phase7NewRemote(ctx context.Context, remoteSnap *remotetree.Snapshot, summary *RunSummary) error {
	mappings, err := e.Store.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings for new-remote discovery: %w", err)
	}

	mappedRemoteIDs := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mappedRemoteIDs[m.RemoteID] = true
	}

	for _, f := range remoteSnap.Files {
		if mappedRemoteIDs[f.RemoteID] {
			continue
		}

		localFull := filepath.Join(e.LocalRoot, filepath.FromSlash(f.Path))
		if _, statErr := os.Stat(localFull); statErr == nil {
			if err := e.newRemoteConflict(ctx, f, summary); err != nil {
				summary.Errors++
			}
			continue
		}

		if err := e.pullNewRemote(ctx, f, summary); err != nil {
			summary.Errors++
		}
	}

	return nil
}

// newRemoteConflict pulls the colliding remote file to a conflict-copy path
// next to the pre-existing local file and records a conflict mapping for
// the original path, leaving the local content untouched (§4.5 P7).
func (e *Engine) newRemoteConflict(ctx context.Context, remoteFile remotetree.File, summary *RunSummary) error {
	tmp := filepath.Join(e.LocalRoot, filepath.FromSlash(remoteFile.Path)) + ".conflict.part"
	if err := e.Drive.Download(ctx, remoteFile.RemoteID, tmp); err != nil {
		if errors.Is(err, feishu.ErrRemoteGone) {
			return e.tombstoneGoneRemoteDiscovery(ctx, remoteFile)
		}
		return e.enqueueRetry(ctx, store.OpPull, RetryPayload{Pull: &PullPayload{LocalPath: remoteFile.Path, RemoteID: remoteFile.RemoteID, Kind: remoteFile.Kind}}, err)
	}

	exists := func(p string) bool {
		_, statErr := os.Stat(filepath.Join(e.LocalRoot, filepath.FromSlash(p)))
		return statErr == nil
	}
	destRel := conflictPath(remoteFile.Path, time.Now(), exists)
	if _, err := writeConflictCopy(e.LocalRoot, destRel, tmp); err != nil {
		return err
	}

	localHash, err := hashLocalFile(filepath.Join(e.LocalRoot, filepath.FromSlash(remoteFile.Path)))
	if err != nil {
		return err
	}

	m := &store.FileMapping{
		LocalPath:      remoteFile.Path,
		RemoteID:       remoteFile.RemoteID,
		RemoteKind:     string(remoteFile.Kind),
		LocalHash:      localHash,
		RemoteHash:     RemoteFingerprint(remoteFile.ModifiedTime, remoteFile.Size),
		RemoteModified: remoteFile.ModifiedTime,
		Status:         store.StatusConflict,
		Conflict:       true,
	}
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("recording conflict mapping for %s: %w", remoteFile.Path, err)
	}

	summary.Conflicts++
	return nil
}

// pullNewRemote downloads a brand-new remote file and creates its mapping.
// A download that fails because the item was deleted remotely between the
// walk and the download is tombstoned immediately instead of retried
// forever, mirroring phase0DrainRetries' RemoteGone handling.
func (e *Engine) pullNewRemote(ctx context.Context, remoteFile remotetree.File, summary *RunSummary) error {
	tmp := filepath.Join(e.LocalRoot, filepath.FromSlash(remoteFile.Path)) + ".part"
	if err := e.Drive.Download(ctx, remoteFile.RemoteID, tmp); err != nil {
		if errors.Is(err, feishu.ErrRemoteGone) {
			return e.tombstoneGoneRemoteDiscovery(ctx, remoteFile)
		}
		return e.enqueueRetry(ctx, store.OpPull, RetryPayload{Pull: &PullPayload{LocalPath: remoteFile.Path, RemoteID: remoteFile.RemoteID, Kind: remoteFile.Kind}}, err)
	}
	if err := atomicRenameInto(e.LocalRoot, remoteFile.Path, tmp); err != nil {
		return err
	}

	localHash, err := hashLocalFile(filepath.Join(e.LocalRoot, filepath.FromSlash(remoteFile.Path)))
	if err != nil {
		return err
	}

	m := &store.FileMapping{
		LocalPath:      remoteFile.Path,
		RemoteID:       remoteFile.RemoteID,
		RemoteKind:     string(remoteFile.Kind),
		LocalHash:      localHash,
		RemoteHash:     RemoteFingerprint(remoteFile.ModifiedTime, remoteFile.Size),
		RemoteModified: remoteFile.ModifiedTime,
		Status:         store.StatusActive,
	}
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("recording mapping for new remote file %s: %w", remoteFile.Path, err)
	}

	summary.Downloaded++
	summary.DownloadedBytes += remoteFile.Size
	return nil
}

// tombstoneGoneRemoteDiscovery records a SideRemote tombstone for a remote
// item discovered during this walk that vanished before it could be pulled.
// No mapping exists yet for a never-pulled discovery, so there is nothing
// to mark deleted; the tombstone alone preserves the audit trail.
func (e *Engine) tombstoneGoneRemoteDiscovery(ctx context.Context, remoteFile remotetree.File) error {
	if err := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, LocalPath: remoteFile.Path, RemoteID: remoteFile.RemoteID, Reason: store.ReasonRemoteGone}); err != nil {
		return fmt.Errorf("tombstoning gone remote discovery %s: %w", remoteFile.Path, err)
	}
	return nil
}
