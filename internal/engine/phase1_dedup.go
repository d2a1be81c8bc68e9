package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiver1514/feishu-sync/internal/remotetree"
)

// phase1Dedup implements §4.5 P1 by delegating to remotetree.Dedup. The
// caller re-walks the tree afterward (in Run) so downstream phases see a
// unique namespace.
func (e *Engine) phase1Dedup(ctx context.Context, rootID string) error {
	result, err := remotetree.Dedup(ctx, e.Drive, rootID, remotetree.Options{RecycleBinName: e.Sync.RemoteRecycleBin})
	if err != nil {
		return fmt.Errorf("remote dedup: %w", err)
	}
	if result.Deleted > 0 {
		e.Log.Emit(slog.LevelInfo, "dedup", "collapsed same-name remote siblings", map[string]any{
			"groups": result.GroupsDeduped, "deleted": result.Deleted,
		})
	}
	return nil
}
