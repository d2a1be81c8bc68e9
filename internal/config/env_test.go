package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("FEISHU_SYNC_CONFIG", "/etc/feishu-sync.yaml")
	env := ReadEnvOverrides()
	assert.Equal(t, "/etc/feishu-sync.yaml", env.ConfigPath)
}

func TestReadEnvOverrides_Unset(t *testing.T) {
	t.Setenv("FEISHU_SYNC_CONFIG", "")
	env := ReadEnvOverrides()
	assert.Equal(t, "", env.ConfigPath)
}

func TestResolvePath_FlagTakesPrecedence(t *testing.T) {
	got := ResolvePath("/from/flag.yaml", EnvOverrides{ConfigPath: "/from/env.yaml"}, "/default.yaml")
	assert.Equal(t, "/from/flag.yaml", got)
}

func TestResolvePath_EnvBeforeDefault(t *testing.T) {
	got := ResolvePath("", EnvOverrides{ConfigPath: "/from/env.yaml"}, "/default.yaml")
	assert.Equal(t, "/from/env.yaml", got)
}

func TestResolvePath_FallsBackToDefault(t *testing.T) {
	got := ResolvePath("", EnvOverrides{}, "/default.yaml")
	assert.Equal(t, "/default.yaml", got)
}
