package trigger

import (
	"context"
	"errors"
)

// ErrBusy is returned by ManualTrigger.Run when another pass already holds
// the run lock. The run command reports it as an error; no HTTP route
// exposes the manual trigger, so no 409 status is produced for it.
var ErrBusy = errors.New("trigger: a reconciliation pass is already running")

// ManualTrigger is the synchronous trigger surface of §4.7: it blocks the
// caller until the run completes (or fails immediately with ErrBusy), and
// supports dry_run.
type ManualTrigger struct {
	coordinator *RunCoordinator
	run         RunFunc
}

// NewManualTrigger builds a manual trigger bound to the given dispatch
// function.
func NewManualTrigger(coordinator *RunCoordinator, run RunFunc) *ManualTrigger {
	return &ManualTrigger{coordinator: coordinator, run: run}
}

// Run attempts to acquire the run lock immediately (no waiting) and, on
// success, executes one pass synchronously.
func (t *ManualTrigger) Run(ctx context.Context, dryRun bool) (RunSummary, error) {
	if !t.coordinator.TryAcquire() {
		return RunSummary{}, ErrBusy
	}
	defer t.coordinator.Release()

	return t.run(ctx, dryRun)
}
