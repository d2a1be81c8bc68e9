package trigger

import (
	"context"
	"time"
)

// RunResult is the published outcome of the most recent scheduled or
// webhook-triggered pass (§4.7 published state).
type RunResult string

const (
	ResultSuccess      RunResult = "success"
	ResultWarning      RunResult = "warning"
	ResultFailed       RunResult = "failed"
	ResultSkippedBusy  RunResult = "skipped_busy"
	ResultRunning      RunResult = "running"
)

// State is the Scheduler's published snapshot (§4.7): "{running, enabled,
// configured_interval, effective_interval, last_started_at,
// last_finished_at, last_result, last_error, next_run_at, run_count,
// skipped_busy_count}".
type State struct {
	Running              bool       `json:"running"`
	Enabled              bool       `json:"enabled"`
	ConfiguredIntervalSec int       `json:"configured_interval"`
	EffectiveIntervalSec  int       `json:"effective_interval"`
	LastStartedAt        *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt       *time.Time `json:"last_finished_at,omitempty"`
	LastResult           RunResult  `json:"last_result,omitempty"`
	LastError            string     `json:"last_error,omitempty"`
	NextRunAt            time.Time  `json:"next_run_at"`
	RunCount             int        `json:"run_count"`
	SkippedBusyCount     int        `json:"skipped_busy_count"`
}

// RunSummary is the minimal shape trigger needs from a completed
// reconciliation pass, kept narrow so this package doesn't need to import
// internal/engine's full RunSummary.
type RunSummary struct {
	FatalError string
	Errors     int
}

// RunFunc executes one reconciliation pass. Implementations normally close
// over an *engine.Engine and adapt its RunSummary into this shape.
type RunFunc func(ctx context.Context, dryRun bool) (RunSummary, error)
