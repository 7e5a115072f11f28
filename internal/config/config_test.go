package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "app:\n  env: prod\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.Server.Addr)
	assert.Equal(t, 60, cfg.Data.Lookback)
	assert.Equal(t, 30, cfg.Data.MinHistory)
	assert.Equal(t, 6, cfg.Schedule.Hour)
	assert.Equal(t, 45, cfg.Schedule.Minute)
	assert.Equal(t, "America/New_York", cfg.Schedule.Timezone)
	assert.False(t, cfg.Broker.Configured())
}

func TestLoadExplicitZeroKept(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "schedule:\n  hour: 9\n  minute: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Schedule.Hour)
	assert.Equal(t, 0, cfg.Schedule.Minute)
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "data:\n  lookback: 90\n")
	path := writeConfig(t, dir, "config.yaml", "include:\n  - base.yaml\ndata:\n  min_history: 40\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Data.Lookback)
	assert.Equal(t, 40, cfg.Data.MinHistory)
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("min history above lookback", func(t *testing.T) {
		path := writeConfig(t, dir, "bad_history.yaml", "data:\n  lookback: 20\n  min_history: 30\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad timezone", func(t *testing.T) {
		path := writeConfig(t, dir, "bad_tz.yaml", "schedule:\n  timezone: Mars/Olympus\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("half broker credentials", func(t *testing.T) {
		path := writeConfig(t, dir, "bad_broker.yaml", "broker:\n  api_key: abc\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("telegram enabled without token", func(t *testing.T) {
		path := writeConfig(t, dir, "bad_tg.yaml", "notify:\n  telegram:\n    enabled: true\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}
