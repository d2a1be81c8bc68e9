package trigger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiver1514/feishu-sync/internal/config"
)

func TestRunCoordinatorSerializesAccess(t *testing.T) {
	c := NewRunCoordinator()
	require.True(t, c.TryAcquire())
	assert.False(t, c.TryAcquire())
	c.Release()
	assert.True(t, c.TryAcquire())
	c.Release()
}

func TestRunCoordinatorAcquireWithTimeoutGivesUp(t *testing.T) {
	c := NewRunCoordinator()
	require.True(t, c.TryAcquire())
	defer c.Release()

	start := time.Now()
	ok := c.AcquireWithTimeout(context.Background(), 50*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestManualTriggerReturnsBusyWhenLockHeld(t *testing.T) {
	c := NewRunCoordinator()
	require.True(t, c.TryAcquire())
	defer c.Release()

	mt := NewManualTrigger(c, func(ctx context.Context, dryRun bool) (RunSummary, error) {
		return RunSummary{}, nil
	})

	_, err := mt.Run(context.Background(), false)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestManualTriggerDryRunPassesThrough(t *testing.T) {
	c := NewRunCoordinator()
	var gotDryRun bool
	mt := NewManualTrigger(c, func(ctx context.Context, dryRun bool) (RunSummary, error) {
		gotDryRun = dryRun
		return RunSummary{}, nil
	})

	_, err := mt.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, gotDryRun)
}

func TestSchedulerFiresAndPublishesState(t *testing.T) {
	c := NewRunCoordinator()
	fired := make(chan struct{}, 1)
	s := NewScheduler(c, func(ctx context.Context, dryRun bool) (RunSummary, error) {
		fired <- struct{}{}
		return RunSummary{}, nil
	}, config.MinPollIntervalSec, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Loop(ctx)

	select {
	case <-fired:
	case <-time.After(15 * time.Second):
		t.Fatal("scheduler never fired")
	}

	state := s.State()
	assert.Equal(t, config.MinPollIntervalSec, state.EffectiveIntervalSec)
	// RunCount is bumped only after the run func returns, so wait for it.
	assert.Eventually(t, func() bool { return s.State().RunCount >= 1 }, time.Second, 10*time.Millisecond)
}

func TestSchedulerSkipsBusyWhenLockHeld(t *testing.T) {
	c := NewRunCoordinator()
	require.True(t, c.TryAcquire())
	defer c.Release()

	s := NewScheduler(c, func(ctx context.Context, dryRun bool) (RunSummary, error) {
		return RunSummary{}, nil
	}, config.MinPollIntervalSec, true)

	s.fireOnce(context.Background())
	state := s.State()
	assert.Equal(t, 1, state.SkippedBusyCount)
	assert.Equal(t, ResultSkippedBusy, state.LastResult)
}

func TestWebhookURLVerificationEchoesChallenge(t *testing.T) {
	cfg := config.SyncConfig{EventVerifyToken: "tok", EventDebounceSec: 1, EventTriggerTypes: []string{"*"}}
	wt := NewWebhookTrigger(cfg, NewRunCoordinator(), func(ctx context.Context, dryRun bool) (RunSummary, error) {
		return RunSummary{}, nil
	})

	body, _ := json.Marshal(map[string]string{"type": "url_verification", "challenge": "c123", "token": "tok"})
	res := wt.Handle(context.Background(), body, "", "", "")
	assert.Equal(t, OutcomeChallenge, res.Outcome)
	assert.Equal(t, "c123", res.Challenge)
}

func TestWebhookRejectsWrongVerifyToken(t *testing.T) {
	cfg := config.SyncConfig{EventVerifyToken: "tok", EventTriggerTypes: []string{"*"}}
	wt := NewWebhookTrigger(cfg, NewRunCoordinator(), func(ctx context.Context, dryRun bool) (RunSummary, error) {
		return RunSummary{}, nil
	})

	body, _ := json.Marshal(map[string]any{"header": map[string]string{"token": "wrong", "event_id": "e1", "event_type": "drive.file.edit"}})
	res := wt.Handle(context.Background(), body, "", "", "")
	assert.Equal(t, OutcomeUnauthorized, res.Outcome)
}

func TestWebhookDedupesRepeatedEventID(t *testing.T) {
	cfg := config.SyncConfig{EventVerifyToken: "tok", EventDebounceSec: 0, EventTriggerTypes: []string{"*"}}
	var runs int
	wt := NewWebhookTrigger(cfg, NewRunCoordinator(), func(ctx context.Context, dryRun bool) (RunSummary, error) {
		runs++
		return RunSummary{}, nil
	})

	body, _ := json.Marshal(map[string]any{"header": map[string]string{"token": "tok", "event_id": "e1", "event_type": "drive.file.edit"}})
	first := wt.Handle(context.Background(), body, "", "", "")
	second := wt.Handle(context.Background(), body, "", "", "")

	assert.Equal(t, OutcomeAccepted, first.Outcome)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
}

func TestWebhookFiltersDisallowedEventType(t *testing.T) {
	cfg := config.SyncConfig{EventVerifyToken: "tok", EventTriggerTypes: []string{"drive.file.*"}}
	wt := NewWebhookTrigger(cfg, NewRunCoordinator(), func(ctx context.Context, dryRun bool) (RunSummary, error) {
		return RunSummary{}, nil
	})

	body, _ := json.Marshal(map[string]any{"header": map[string]string{"token": "tok", "event_id": "e1", "event_type": "contact.user.created"}})
	res := wt.Handle(context.Background(), body, "", "", "")
	assert.Equal(t, OutcomeFiltered, res.Outcome)
}
