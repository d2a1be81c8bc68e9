package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/store"
)

// RetryPayload is the tagged-union variant described in §9 "Retry payload as
// tagged variant": every opcode has its own concrete shape, and JSON
// serialization happens only at the StateStore edge (Marshal /
// UnmarshalPayload below), never as an opaque blob threaded through engine
// logic.
type RetryPayload struct {
	Upload       *UploadPayload       `json:"upload,omitempty"`
	Pull         *PullPayload         `json:"pull,omitempty"`
	DeleteRemote *DeleteRemotePayload `json:"delete_remote,omitempty"`
	DeleteLocal  *DeleteLocalPayload  `json:"delete_local,omitempty"`
}

// UploadPayload retries an upload of a local path, optionally replacing an
// existing remote id.
type UploadPayload struct {
	LocalPath      string `json:"rel"`
	ReplaceRemote  string `json:"replace_remote_id,omitempty"`
	FolderRemoteID string `json:"folder_remote_id"`
}

// PullPayload retries a download of a remote item into a local path.
type PullPayload struct {
	LocalPath string      `json:"rel"`
	RemoteID  string      `json:"remote_item_id"`
	Kind      feishu.ItemKind `json:"kind"`
}

// DeleteRemotePayload retries a remote soft/hard delete.
type DeleteRemotePayload struct {
	RemoteID string          `json:"id"`
	Kind     feishu.ItemKind `json:"kind"`
}

// DeleteLocalPayload retries a local soft-delete (trash move).
type DeleteLocalPayload struct {
	LocalPath string `json:"rel"`
}

// Opcode returns which variant is populated.
func (p RetryPayload) Opcode() (store.RetryOpcode, error) {
	switch {
	case p.Upload != nil:
		return store.OpUpload, nil
	case p.Pull != nil:
		return store.OpPull, nil
	case p.DeleteRemote != nil:
		return store.OpDeleteRemote, nil
	case p.DeleteLocal != nil:
		return store.OpDeleteLocal, nil
	default:
		return "", fmt.Errorf("retry payload has no populated variant")
	}
}

// Marshal serializes the payload for the StateStore edge.
func (p RetryPayload) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling retry payload: %w", err)
	}
	return string(data), nil
}

// UnmarshalPayload decodes a stored payload string. An opcode with no
// matching variant populated is a programmer error (§4.5: "unknown opcode in
// retry payload → discard"), signaled via ErrUnknownOpcode.
func UnmarshalPayload(opcode store.RetryOpcode, raw string) (RetryPayload, error) {
	var p RetryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return RetryPayload{}, fmt.Errorf("unmarshaling retry payload: %w", err)
	}

	got, err := p.Opcode()
	if err != nil || got != opcode {
		return RetryPayload{}, fmt.Errorf("%w: stored opcode %q does not match payload", ErrUnknownOpcode, opcode)
	}
	return p, nil
}
