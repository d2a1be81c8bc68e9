// Package store implements the embedded StateStore described in §3/§4.2: a
// single-file relational store, idempotently schema-migrated on first use,
// written only by the engine's run thread and read by fresh handles from
// observability callers.
package store

import "time"

// MappingStatus is the FileMapping lifecycle state.
type MappingStatus string

const (
	StatusActive   MappingStatus = "active"
	StatusConflict MappingStatus = "conflict"
	StatusDeleted  MappingStatus = "deleted"
)

// FileMapping is a durable row linking a local path to a remote id and the
// last-synced fingerprints of both sides (§3).
type FileMapping struct {
	ID             int64
	LocalPath      string
	RemoteID       string
	RemoteKind     string
	LocalHash      string
	RemoteHash     string
	LocalMTime     time.Time
	RemoteModified time.Time
	Status         MappingStatus
	Conflict       bool
	LastSyncedAt   time.Time
}

// FolderMapping links a local relative directory to a remote folder id.
type FolderMapping struct {
	ID        int64
	LocalDir  string
	RemoteID  string
}

// TombstoneSide distinguishes which side of a mapping the tombstone records.
type TombstoneSide string

const (
	SideLocal  TombstoneSide = "local"
	SideRemote TombstoneSide = "remote"
)

// Tombstone is an append-only marker recording a side-delete or a vanished
// remote resource (§3, invariant 3 in §8).
type Tombstone struct {
	ID        int64
	Side      TombstoneSide
	LocalPath string
	RemoteID  string
	Reason    string
	CreatedAt time.Time
}

// Common tombstone reason codes.
const (
	ReasonRemoteGone       = "remote_404"
	ReasonLocalDeleted     = "local_deleted"
	ReasonRemoteDeleted    = "remote_deleted"
	ReasonBothMissing      = "both_missing"
	ReasonLocalWinsAmbiguous = "local_wins_on_local_missing"
)

// RetryOpcode is the tagged-union discriminator for a retry payload (§9
// "Retry payload as tagged variant").
type RetryOpcode string

const (
	OpUpload       RetryOpcode = "upload"
	OpPull         RetryOpcode = "pull"
	OpDeleteRemote RetryOpcode = "delete_remote"
	OpDeleteLocal  RetryOpcode = "delete_local"
)

// RetryEntry is a durable, exponential-backoff retry row (§3, §4.6).
type RetryEntry struct {
	ID           int64
	Opcode       RetryOpcode
	Payload      string // JSON-serialized RetryPayload variant; see engine package
	AttemptCount int
	NextRetryAt  time.Time
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunStatus is the SyncRun lifecycle state.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// SyncRun is an append-only record of one reconciliation pass (§3). RunID is
// a google/uuid-minted correlation id (§4.5 "one id per pass") used to tie
// together every log line emitted during the pass; the row's own identity
// for joins and ordering remains the integer autoincrement ID.
type SyncRun struct {
	ID          int64
	RunID       string
	RunType     string
	Status      RunStatus
	StartedAt   time.Time
	FinishedAt  *time.Time
	SummaryJSON string
}
