package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Sync.LocalRoot = "/tmp/root"
	return cfg
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_RequiresLocalRoot(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.LocalRoot = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "local_root")
}

func TestValidate_RejectsUnknownSyncDirection(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.DefaultSyncDirection = "sideways"
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_RejectsUnknownInitialSyncStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.InitialSyncStrategy = "bogus"
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_RejectsUnknownRemoteDeleteMode(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.RemoteDeleteMode = "shred"
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_AllowsEmptyRemoteDeleteMode(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.RemoteDeleteMode = ""
	assert.NoError(t, Validate(cfg))
}

func TestValidate_PollIntervalOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.PollIntervalSec = MinPollIntervalSec - 1
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.Sync.PollIntervalSec = MaxPollIntervalSec + 1
	err = Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_PollIntervalZeroDisablesWithoutError(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.PollIntervalSec = 0
	assert.NoError(t, Validate(cfg))
}

func TestValidate_EventCallbackRequiresVerifyToken(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.EventCallbackEnabled = true
	cfg.Sync.EventVerifyToken = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "event_verify_token")
}

func TestValidate_EventCallbackWithVerifyTokenPasses(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.EventCallbackEnabled = true
	cfg.Sync.EventVerifyToken = "v-token"
	assert.NoError(t, Validate(cfg))
}

func TestClampPollInterval(t *testing.T) {
	assert.Equal(t, 0, ClampPollInterval(0))
	assert.Equal(t, MinPollIntervalSec, ClampPollInterval(1))
	assert.Equal(t, MaxPollIntervalSec, ClampPollInterval(MaxPollIntervalSec+1000))
	assert.Equal(t, 120, ClampPollInterval(120))
}
