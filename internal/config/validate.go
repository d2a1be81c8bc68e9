package config

import (
	"errors"
	"fmt"
)

// ErrInvalidYAML, ErrInvalidConfig classify every failure this package can
// produce as the §7 "Configuration" error kind.
var (
	ErrInvalidYAML   = errors.New("invalid yaml")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownKey    = errors.New("unknown configuration key")
)

// Validate checks every field with a closed set of legal values or a bounded
// range, matching internal/config's per-field validators in spirit. It
// returns a wrapped ErrInvalidConfig naming the offending field.
func Validate(cfg *Config) error {
	if cfg.Sync.LocalRoot == "" {
		return fmt.Errorf("%w: sync.local_root must not be empty", ErrInvalidConfig)
	}

	switch cfg.Sync.DefaultSyncDirection {
	case DirectionRemoteWins, DirectionLocalWins, DirectionBidirectional:
	default:
		return fmt.Errorf("%w: sync.default_sync_direction %q is not one of remote_wins|local_wins|bidirectional",
			ErrInvalidConfig, cfg.Sync.DefaultSyncDirection)
	}

	switch cfg.Sync.InitialSyncStrategy {
	case InitialLocalWins, InitialRemoteWins, InitialDryRun:
	default:
		return fmt.Errorf("%w: sync.initial_sync_strategy %q is not one of local_wins|remote_wins|dry_run",
			ErrInvalidConfig, cfg.Sync.InitialSyncStrategy)
	}

	switch cfg.Sync.RemoteDeleteMode {
	case RemoteDeleteRecycleBin, RemoteDeleteHard, "":
	default:
		return fmt.Errorf("%w: sync.remote_delete_mode %q is not one of recycle_bin|hard_delete",
			ErrInvalidConfig, cfg.Sync.RemoteDeleteMode)
	}

	if cfg.Sync.PollIntervalSec != 0 {
		if cfg.Sync.PollIntervalSec < MinPollIntervalSec || cfg.Sync.PollIntervalSec > MaxPollIntervalSec {
			return fmt.Errorf("%w: sync.poll_interval_sec %d out of range [%d, %d] (or 0 to disable)",
				ErrInvalidConfig, cfg.Sync.PollIntervalSec, MinPollIntervalSec, MaxPollIntervalSec)
		}
	}

	if cfg.Sync.EventCallbackEnabled && cfg.Sync.EventVerifyToken == "" {
		return fmt.Errorf("%w: sync.event_verify_token is required when event_callback_enabled is true",
			ErrInvalidConfig)
	}

	return nil
}
