package config

const (
	// MinPollIntervalSec and MaxPollIntervalSec clamp sync.poll_interval_sec.
	MinPollIntervalSec = 10
	MaxPollIntervalSec = 86400

	// DefaultRetryBackoffCapSec caps §4.6 normal reschedule backoff.
	DefaultRetryBackoffCapSec = 300
	// DefaultRetryBackoffFailCapSec caps backoff after a drain failure.
	DefaultRetryBackoffFailCapSec = 600
	// DefaultMaxRetryAttempts is the default RetryEntry.max_retry.
	DefaultMaxRetryAttempts = 5

	// DefaultRetryDrainBatch bounds rows drained per run (§4.6).
	DefaultRetryDrainBatch = 50

	// DefaultEventLockWaitTimeoutSec is the webhook worker's lock-wait bound (§4.7).
	DefaultEventLockWaitTimeoutSec = 120
)

// Defaults returns a Config with every field set to its documented default.
// Callers overlay a loaded YAML document on top of this, field by field.
func Defaults() *Config {
	return &Config{
		StateDBPath: "state.db",
		LogLevel:    "info",
		Auth: AuthConfig{
			UserTokenFile: "user_token.json",
			TimeoutSec:    30,
		},
		Sync: SyncConfig{
			LocalRoot:            "",
			PollIntervalSec:      300,
			DefaultSyncDirection: DirectionBidirectional,
			InitialSyncStrategy:  InitialLocalWins,
			RemoteRecycleBin:     ".recycle",
			LocalTrashDir:        ".sync_trash",
			RemoteDeleteMode:     RemoteDeleteRecycleBin,
			ExcludeDirs:          []string{".git", ".sync_trash", ".sync_quarantine"},
			ExcludeHiddenDirs:    true,
			ExcludeHiddenFiles:   false,
			EventDebounceSec:     15,
			EventTriggerTypes:    []string{"*"},
		},
		Extra: map[string]any{},
	}
}

// ClampPollInterval applies the [10, 86400] clamp from §6, leaving 0
// (disabled) untouched.
func ClampPollInterval(sec int) int {
	if sec == 0 {
		return 0
	}
	if sec < MinPollIntervalSec {
		return MinPollIntervalSec
	}
	if sec > MaxPollIntervalSec {
		return MaxPollIntervalSec
	}
	return sec
}
