package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// phase0DrainRetries implements §4.6/§4.5 P0: pop due RetryEntries (bounded
// batch), attempt each, and route the result.
func (e *Engine) phase0DrainRetries(ctx context.Context, summary *RunSummary) error {
	due, err := e.Store.ListDue(ctx, time.Now(), config.DefaultRetryDrainBatch)
	if err != nil {
		return fmt.Errorf("draining retry queue: %w", err)
	}

	for _, entry := range due {
		payload, err := UnmarshalPayload(entry.Opcode, entry.Payload)
		if err != nil {
			// Unknown opcode in retry payload → discard as programmer error (§4.5).
			e.Log.Emit(slog.LevelError, "retry", "discarding retry entry with unknown opcode", map[string]any{"id": entry.ID, "opcode": entry.Opcode})
			_ = e.Store.DeleteRetry(ctx, entry.ID)
			summary.RetryDiscarded++
			continue
		}

		var rel string
		switch {
		case payload.Upload != nil:
			rel = payload.Upload.LocalPath
		case payload.Pull != nil:
			rel = payload.Pull.LocalPath
		case payload.DeleteLocal != nil:
			rel = payload.DeleteLocal.LocalPath
		}
		if rel != "" && (!withinRoot(e.LocalRoot, rel) || isSentinelPath(rel, e.Sync.LocalTrashDir, ".sync_quarantine")) {
			e.Log.Emit(slog.LevelWarn, "retry", "discarding retry entry: policy violation", map[string]any{"id": entry.ID, "opcode": entry.Opcode, "rel": rel, "err": ErrPolicyViolation.Error()})
			_ = e.Store.DeleteRetry(ctx, entry.ID)
			summary.RetryDiscarded++
			continue
		}

		retryErr := e.executeRetry(ctx, payload)
		switch {
		case retryErr == nil:
			_ = e.Store.DeleteRetry(ctx, entry.ID)
			summary.RetrySuccess++

		case errors.Is(retryErr, feishu.ErrRemoteGone):
			// Permanent-remote-gone → tombstone and delete, do not reschedule.
			if tsErr := e.tombstoneForRetry(ctx, payload); tsErr != nil {
				e.Log.Emit(slog.LevelError, "retry", "failed to write tombstone for gone remote item", map[string]any{"err": tsErr.Error()})
			}
			_ = e.Store.DeleteRetry(ctx, entry.ID)
			summary.RetrySuccess++

		default:
			summary.RetryFailed++
			if entry.AttemptCount+1 >= e.MaxRetryAttempts {
				e.Log.Emit(slog.LevelWarn, "retry", "retry_discarded", map[string]any{"id": entry.ID, "opcode": entry.Opcode, "attempts": entry.AttemptCount + 1})
				_ = e.Store.DeleteRetry(ctx, entry.ID)
				summary.RetryDiscarded++
				continue
			}

			next := time.Now().Add(backoffDelay(entry.AttemptCount+1, true))
			if err := e.Store.RescheduleRetry(ctx, entry.ID, next, retryErr.Error()); err != nil {
				e.Log.Emit(slog.LevelError, "retry", "failed to reschedule retry entry", map[string]any{"id": entry.ID, "err": err.Error()})
			}
		}
	}

	return nil
}

// backoffDelay implements §4.6: delay = min(cap, 2^(attempt+1)) seconds,
// cap 300s for a normal reschedule or 600s after a drain failure.
func backoffDelay(attempt int, afterFailure bool) time.Duration {
	cap := config.DefaultRetryBackoffCapSec
	if afterFailure {
		cap = config.DefaultRetryBackoffFailCapSec
	}

	seconds := 1 << uint(attempt+1)
	if seconds > cap || seconds <= 0 {
		seconds = cap
	}
	return time.Duration(seconds) * time.Second
}

// executeRetry dispatches a tagged retry payload to the matching operation.
func (e *Engine) executeRetry(ctx context.Context, payload RetryPayload) error {
	switch {
	case payload.Upload != nil:
		return e.retryUpload(ctx, payload.Upload)
	case payload.Pull != nil:
		return e.retryPull(ctx, payload.Pull)
	case payload.DeleteRemote != nil:
		return e.Drive.HardDelete(ctx, payload.DeleteRemote.RemoteID, payload.DeleteRemote.Kind)
	case payload.DeleteLocal != nil:
		return softDeleteLocal(e.LocalRoot, e.Sync.LocalTrashDir, payload.DeleteLocal.LocalPath, time.Now())
	default:
		return fmt.Errorf("%w: empty retry payload", ErrUnknownOpcode)
	}
}

func (e *Engine) retryUpload(ctx context.Context, p *UploadPayload) error {
	full := e.LocalRoot + "/" + p.LocalPath
	name := baseName(p.LocalPath)
	result, err := e.Drive.Upload(ctx, p.FolderRemoteID, name, full)
	if err != nil {
		return err
	}
	if p.ReplaceRemote != "" && p.ReplaceRemote != result.RemoteID {
		_ = e.Drive.HardDelete(ctx, p.ReplaceRemote, feishu.KindFile)
	}
	return nil
}

func (e *Engine) retryPull(ctx context.Context, p *PullPayload) error {
	tmp := e.LocalRoot + "/" + p.LocalPath + ".part"
	if err := e.Drive.Download(ctx, p.RemoteID, tmp); err != nil {
		return err
	}
	return atomicRenameInto(e.LocalRoot, p.LocalPath, tmp)
}

// tombstoneForRetry records a Tombstone before a retry entry referencing a
// now-gone remote item is dropped, so the audit trail (§8 invariant 3)
// still covers retry-path deletions, not only live-reconciliation ones.
func (e *Engine) tombstoneForRetry(ctx context.Context, payload RetryPayload) error {
	switch {
	case payload.Pull != nil:
		return e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, LocalPath: payload.Pull.LocalPath, RemoteID: payload.Pull.RemoteID, Reason: store.ReasonRemoteGone})
	case payload.DeleteRemote != nil:
		return e.Store.InsertTombstone(ctx, &store.Tombstone{Side: store.SideRemote, RemoteID: payload.DeleteRemote.RemoteID, Reason: store.ReasonRemoteGone})
	default:
		return nil
	}
}
