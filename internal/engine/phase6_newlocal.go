package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/localscan"
	"github.com/shiver1514/feishu-sync/internal/remotetree"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// phase6NewLocal implements §4.5 P6: a local file with no mapping either
// collides with an unmapped remote file at the same path (conflict copy) or
// is brand new (upload, create mapping).
func (e *Engine) phase6NewLocal(ctx context.Context, rootID string, localScan *localscan.Result, remoteSnap *remotetree.Snapshot, summary *RunSummary) error {
	mappings, err := e.Store.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings for new-local discovery: %w", err)
	}

	mappedPaths := make(map[string]bool, len(mappings))
	mappedRemoteIDs := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mappedPaths[m.LocalPath] = true
		mappedRemoteIDs[m.RemoteID] = true
	}

	remoteByPath := make(map[string]remotetree.File, len(remoteSnap.Files))
	for _, f := range remoteSnap.Files {
		remoteByPath[f.Path] = f
	}

	for rel, entry := range localScan.Files {
		if mappedPaths[rel] {
			continue
		}

		if remoteFile, ok := remoteByPath[rel]; ok && !mappedRemoteIDs[remoteFile.RemoteID] {
			if err := e.newLocalConflict(ctx, rel, entry, remoteFile, summary); err != nil {
				summary.Errors++
			}
			continue
		}

		if err := e.uploadNewLocal(ctx, rootID, rel, entry, summary); err != nil {
			summary.Errors++
		}
	}

	return nil
}

// newLocalConflict downloads the colliding remote file to a conflict-copy
// path and records a conflict mapping for the original local path, leaving
// the local content untouched (§4.5 P6). If the remote item vanished
// between the walk and this download, the apparent collision was never
// real; record the remote side gone and leave the local file as a plain
// new-local candidate for the next run.
func (e *Engine) newLocalConflict(ctx context.Context, rel string, localEntry localscan.FileEntry, remoteFile remotetree.File, summary *RunSummary) error {
	tmp := filepath.Join(e.LocalRoot, filepath.FromSlash(rel)) + ".conflict.part"
	if err := e.Drive.Download(ctx, remoteFile.RemoteID, tmp); err != nil {
		if errors.Is(err, feishu.ErrRemoteGone) {
			if tsErr := e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, LocalPath: rel, RemoteID: remoteFile.RemoteID, Reason: store.ReasonRemoteGone}); tsErr != nil {
				return fmt.Errorf("tombstoning gone remote collision for %s: %w", rel, tsErr)
			}
			return nil
		}
		return e.enqueueRetry(ctx, store.OpPull, RetryPayload{Pull: &PullPayload{LocalPath: rel, RemoteID: remoteFile.RemoteID, Kind: remoteFile.Kind}}, err)
	}

	exists := func(p string) bool {
		_, statErr := os.Stat(filepath.Join(e.LocalRoot, filepath.FromSlash(p)))
		return statErr == nil
	}
	destRel := conflictPath(rel, time.Now(), exists)
	if _, err := writeConflictCopy(e.LocalRoot, destRel, tmp); err != nil {
		return err
	}

	m := &store.FileMapping{
		LocalPath:      rel,
		RemoteID:       remoteFile.RemoteID,
		RemoteKind:     string(remoteFile.Kind),
		LocalHash:      localEntry.SHA256,
		RemoteHash:     RemoteFingerprint(remoteFile.ModifiedTime, remoteFile.Size),
		LocalMTime:     time.Unix(localEntry.ModTime, 0).UTC(),
		RemoteModified: remoteFile.ModifiedTime,
		Status:         store.StatusConflict,
		Conflict:       true,
	}
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("recording conflict mapping for %s: %w", rel, err)
	}

	summary.Conflicts++
	e.Log.Emit(slog.LevelInfo, "conflict", "new local file collided with unmapped remote file at the same path", map[string]any{
		"local_path": rel, "remote_id": remoteFile.RemoteID, "conflict_copy": destRel,
	})
	return nil
}

// uploadNewLocal uploads a brand-new local file and creates its mapping.
func (e *Engine) uploadNewLocal(ctx context.Context, rootID string, rel string, entry localscan.FileEntry, summary *RunSummary) error {
	folderID, err := e.parentFolderIDOrRoot(ctx, rel, rootID)
	if err != nil {
		return err
	}

	full := filepath.Join(e.LocalRoot, filepath.FromSlash(rel))
	result, err := e.Drive.Upload(ctx, folderID, baseName(rel), full)
	if err != nil {
		return e.enqueueRetry(ctx, store.OpUpload, RetryPayload{Upload: &UploadPayload{LocalPath: rel, FolderRemoteID: folderID}}, err)
	}

	m := &store.FileMapping{
		LocalPath:  rel,
		RemoteID:   result.RemoteID,
		LocalHash:  entry.SHA256,
		RemoteHash: RemoteFingerprint(time.Now(), entry.Size),
		LocalMTime: time.Unix(entry.ModTime, 0).UTC(),
		Status:     store.StatusActive,
	}
	if err := e.Store.UpsertFileMapping(ctx, m); err != nil {
		return fmt.Errorf("recording mapping for new local file %s: %w", rel, err)
	}

	summary.Uploaded++
	summary.UploadedBytes += entry.Size
	return nil
}

// parentFolderIDOrRoot is parentFolderID but falls back to the already-
// resolved rootID instead of re-resolving, since callers here already hold
// it from Run.
func (e *Engine) parentFolderIDOrRoot(ctx context.Context, relPath, rootID string) (string, error) {
	dir := path.Dir(relPath)
	if dir == "." {
		return rootID, nil
	}
	fm, err := e.Store.GetFolderByLocalDir(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("resolving folder mapping for %s: %w", dir, err)
	}
	return fm.RemoteID, nil
}
