package engine

import (
	"context"

	"github.com/shiver1514/feishu-sync/internal/feishu"
)

// RemoteDrive is the boundary capability contract of §4.1. internal/feishu's
// Drive satisfies it structurally; tests supply a fake.
type RemoteDrive interface {
	ResolveRoot(ctx context.Context) (string, error)
	ListChildren(ctx context.Context, folderID string) ([]feishu.Item, error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	Upload(ctx context.Context, parentID, name, path string) (feishu.UploadResult, error)
	Download(ctx context.Context, remoteID, destPath string) error
	Rename(ctx context.Context, remoteID, newName string) error
	Move(ctx context.Context, remoteID string, kind feishu.ItemKind, newParentID string) error
	HardDelete(ctx context.Context, remoteID string, kind feishu.ItemKind) error
}
