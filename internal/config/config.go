// Package config loads and validates the single YAML configuration document
// that drives the sync engine, the RemoteDrive adapter, and the trigger
// fabric. Unknown top-level keys are preserved across load/save round-trips.
package config

import "time"

// SyncDirection controls how both-sides-changed divergence is resolved.
type SyncDirection string

const (
	DirectionRemoteWins    SyncDirection = "remote_wins"
	DirectionLocalWins     SyncDirection = "local_wins"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// InitialSyncStrategy controls the very first pass, before any mappings exist.
type InitialSyncStrategy string

const (
	InitialLocalWins  InitialSyncStrategy = "local_wins"
	InitialRemoteWins InitialSyncStrategy = "remote_wins"
	InitialDryRun     InitialSyncStrategy = "dry_run"
)

// RemoteDeleteMode controls what a remote soft-delete actually does.
type RemoteDeleteMode string

const (
	RemoteDeleteRecycleBin RemoteDeleteMode = "recycle_bin"
	RemoteDeleteHard       RemoteDeleteMode = "hard_delete"
)

// AuthConfig holds Feishu application credentials and token-file location.
type AuthConfig struct {
	AppID         string `yaml:"app_id"`
	AppSecret     string `yaml:"app_secret"`
	UserTokenFile string `yaml:"user_token_file"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// Timeout returns the configured per-HTTP-call timeout.
func (a AuthConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// SyncConfig holds every reconciliation-affecting setting from §6.
type SyncConfig struct {
	LocalRoot           string `yaml:"local_root"`
	RemoteFolderToken    string `yaml:"remote_folder_token"`
	PollIntervalSec      int    `yaml:"poll_interval_sec"`

	DefaultSyncDirection SyncDirection       `yaml:"default_sync_direction"`
	InitialSyncStrategy  InitialSyncStrategy `yaml:"initial_sync_strategy"`

	RemoteRecycleBin string           `yaml:"remote_recycle_bin"`
	LocalTrashDir    string           `yaml:"local_trash_dir"`
	RemoteDeleteMode RemoteDeleteMode `yaml:"remote_delete_mode"`

	CleanupEmptyRemoteDirs           bool `yaml:"cleanup_empty_remote_dirs"`
	CleanupRemoteMissingDirsRecursive bool `yaml:"cleanup_remote_missing_dirs_recursive"`

	ExcludeDirs        []string `yaml:"exclude_dirs"`
	ExcludeHiddenDirs  bool     `yaml:"exclude_hidden_dirs"`
	ExcludeHiddenFiles bool     `yaml:"exclude_hidden_files"`

	EventCallbackEnabled bool     `yaml:"event_callback_enabled"`
	EventVerifyToken     string   `yaml:"event_verify_token"`
	EventEncryptKey      string   `yaml:"event_encrypt_key"`
	EventDebounceSec     int      `yaml:"event_debounce_sec"`
	EventTriggerTypes    []string `yaml:"event_trigger_types"`
}

// Config is the root configuration document.
type Config struct {
	StateDBPath string     `yaml:"state_db_path"`
	LogLevel    string     `yaml:"log_level"`
	Auth        AuthConfig `yaml:"auth"`
	Sync        SyncConfig `yaml:"sync"`

	// Extra preserves top-level keys this binary doesn't recognize so that
	// Save never drops fields written by a newer or sibling build.
	Extra map[string]any `yaml:"-"`
}
