package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/shiver1514/feishu-sync/internal/config"
)

// Scheduler runs RunFunc on a cooperative cadence (§4.7): poll_interval_sec
// is clamped to [10, 86400] every cycle, and next_run_at is always
// recomputed relative to now (not to the previous deadline) so a live
// interval change takes effect on the very next cycle.
type Scheduler struct {
	mu          sync.Mutex
	state       State
	coordinator *RunCoordinator
	run         RunFunc

	intervalSec int
	wake        chan struct{}
}

// NewScheduler builds a Scheduler with the given configured interval
// (sync.poll_interval_sec, 0 disables it) and enabled flag.
func NewScheduler(coordinator *RunCoordinator, run RunFunc, intervalSec int, enabled bool) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		run:         run,
		intervalSec: intervalSec,
		wake:        make(chan struct{}, 1),
		state:       State{Enabled: enabled, LastResult: ""},
	}
}

// State returns a copy of the published scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetInterval updates the configured interval; the effective clamp and
// next_run_at are recomputed on the scheduler's next cycle.
func (s *Scheduler) SetInterval(sec int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalSec = sec
}

// SetEnabled toggles whether the loop fires runs at all; a disabled
// scheduler still recomputes and publishes next_run_at so operators can see
// when it would have fired.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Enabled = enabled
}

// Nudge asks the loop to wake early (within the configured interval), used
// by the best-effort local-change watcher (§9 domain-stack fsnotify entry)
// to pull next_run_at closer to now without ever invoking a run directly.
func (s *Scheduler) Nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Loop runs until ctx is canceled. It is meant to be started once, in its
// own goroutine, by the process that wires the engine together.
func (s *Scheduler) Loop(ctx context.Context) {
	for {
		s.mu.Lock()
		effective := config.ClampPollInterval(s.intervalSec)
		s.state.ConfiguredIntervalSec = s.intervalSec
		s.state.EffectiveIntervalSec = effective
		enabled := s.state.Enabled
		next := time.Now().Add(time.Duration(effective) * time.Second)
		if effective > 0 {
			s.state.NextRunAt = next
		}
		s.mu.Unlock()

		var wait <-chan time.Time
		if effective > 0 && enabled {
			wait = time.After(time.Until(next))
		} else {
			// Disabled or interval=0: re-poll the config once a second so a
			// live re-enable or interval change is picked up promptly.
			wait = time.After(time.Second)
		}

		select {
		case <-ctx.Done():
			return
		case <-wait:
		case <-s.wake:
		}

		s.mu.Lock()
		shouldRun := enabled && effective > 0
		s.mu.Unlock()
		if !shouldRun {
			continue
		}

		s.fireOnce(ctx)
	}
}

func (s *Scheduler) fireOnce(ctx context.Context) {
	if !s.coordinator.TryAcquire() {
		s.mu.Lock()
		s.state.SkippedBusyCount++
		s.state.LastResult = ResultSkippedBusy
		s.mu.Unlock()
		return
	}
	defer s.coordinator.Release()

	started := time.Now()
	s.mu.Lock()
	s.state.Running = true
	s.state.LastStartedAt = &started
	s.state.LastResult = ResultRunning
	s.mu.Unlock()

	summary, err := s.run(ctx, false)

	finished := time.Now()
	s.mu.Lock()
	s.state.Running = false
	s.state.LastFinishedAt = &finished
	s.state.RunCount++
	switch {
	case err != nil:
		s.state.LastResult = ResultFailed
		s.state.LastError = err.Error()
	case summary.FatalError != "":
		s.state.LastResult = ResultFailed
		s.state.LastError = summary.FatalError
	case summary.Errors > 0:
		s.state.LastResult = ResultWarning
		s.state.LastError = ""
	default:
		s.state.LastResult = ResultSuccess
		s.state.LastError = ""
	}
	s.mu.Unlock()
}
