package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "crontick.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5, cfg.Scheduler.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.Scheduler.HandlerTimeout)
	assert.True(t, cfg.Scheduler.RunOnBootstrap)
	assert.Equal(t, 4<<20, cfg.Scheduler.MemoryReserveBytes())
	assert.Equal(t, "@every 1m", cfg.Daemon.JobsSchedule)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Maintenance.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crontick.toml")
	content := `
[database]
path = "/var/lib/crontick/state.db"

[scheduler]
batch_size = 20
handler_timeout = "30s"
run_on_bootstrap = false

[daemon]
tasks_schedule = "*/5 * * * *"

[logging]
level = "debug"
json = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/crontick/state.db", cfg.Database.Path)
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.HandlerTimeout)
	assert.False(t, cfg.Scheduler.RunOnBootstrap)
	assert.Equal(t, "*/5 * * * *", cfg.Daemon.TasksSchedule)
	assert.Equal(t, "@every 1m", cfg.Daemon.JobsSchedule, "unset keys keep defaults")

	logCfg := cfg.LogConfig()
	assert.Equal(t, slog.LevelDebug, logCfg.Level)
	assert.False(t, logCfg.JSON)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRONTICK_SCHEDULER_BATCH_SIZE", "12")
	t.Setenv("CRONTICK_DATABASE_PATH", "env.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Scheduler.BatchSize)
	assert.Equal(t, "env.db", cfg.Database.Path)
}

func TestLoadWithOverrides(t *testing.T) {
	t.Setenv("CRONTICK_DATABASE_PATH", "env.db")

	cfg, err := LoadWith("", map[string]any{
		"database.path": "flag.db",
		"logging.level": "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadWith("", map[string]any{"logging.level": "loud"})
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Scheduler.BatchSize = 0 }},
		{"negative timeout", func(c *Config) { c.Scheduler.HandlerTimeout = -time.Second }},
		{"bad jobs schedule", func(c *Config) { c.Daemon.JobsSchedule = "every minute" }},
		{"bad tasks schedule", func(c *Config) { c.Daemon.TasksSchedule = "61 * * * *" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"negative burst", func(c *Config) { c.Server.TriggerBurst = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
