// Package config loads crontick settings from defaults, an optional file
// and CRONTICK_* environment variables, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/albachteng/crontick/internal/logging"
)

const EnvPrefix = "CRONTICK"

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Daemon      DaemonConfig      `mapstructure:"daemon"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type SchedulerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	MemoryReserveMB int           `mapstructure:"memory_reserve_mb"`
	RunOnBootstrap  bool          `mapstructure:"run_on_bootstrap"`
}

type DaemonConfig struct {
	JobsSchedule    string        `mapstructure:"jobs_schedule"`
	TasksSchedule   string        `mapstructure:"tasks_schedule"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// TriggerRate is the sustained POST /cron rate per second.
	TriggerRate  float64 `mapstructure:"trigger_rate"`
	TriggerBurst int     `mapstructure:"trigger_burst"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	JSON       bool   `mapstructure:"json"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MaintenanceConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	BacklogThreshold int  `mapstructure:"backlog_threshold"`
}

// SetDefaults registers every key, which also makes each one reachable
// through AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "crontick.db")
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("scheduler.batch_size", 5)
	v.SetDefault("scheduler.handler_timeout", time.Duration(0))
	v.SetDefault("scheduler.memory_reserve_mb", 4)
	v.SetDefault("scheduler.run_on_bootstrap", true)

	v.SetDefault("daemon.jobs_schedule", "@every 1m")
	v.SetDefault("daemon.tasks_schedule", "@every 1m")
	v.SetDefault("daemon.shutdown_timeout", 30*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.trigger_rate", 1.0)
	v.SetDefault("server.trigger_burst", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.json", true)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.backlog_threshold", 100)
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads path (TOML, YAML or JSON by extension) if non-empty, then
// validates the result.
func Load(path string) (*Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with explicit key overrides, such as command-line flags,
// which win over every other source.
func LoadWith(path string, overrides map[string]any) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	for key, val := range overrides {
		v.Set(key, val)
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must be set")
	}
	if c.Scheduler.BatchSize < 1 {
		return errors.Newf("scheduler.batch_size must be at least 1, got %d", c.Scheduler.BatchSize)
	}
	if c.Scheduler.HandlerTimeout < 0 {
		return errors.Newf("scheduler.handler_timeout must not be negative, got %s", c.Scheduler.HandlerTimeout)
	}
	if c.Scheduler.MemoryReserveMB < 0 {
		return errors.Newf("scheduler.memory_reserve_mb must not be negative, got %d", c.Scheduler.MemoryReserveMB)
	}
	for key, spec := range map[string]string{
		"daemon.jobs_schedule":  c.Daemon.JobsSchedule,
		"daemon.tasks_schedule": c.Daemon.TasksSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.Wrapf(err, "%s %q", key, spec)
		}
	}
	if c.Server.TriggerRate < 0 || c.Server.TriggerBurst < 0 {
		return errors.New("server.trigger_rate and server.trigger_burst must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	return nil
}

// MemoryReserveBytes converts the configured reserve to bytes.
func (s SchedulerConfig) MemoryReserveBytes() int {
	return s.MemoryReserveMB << 20
}

// LogConfig maps the logging section onto logging.Config.
func (c *Config) LogConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:      level,
		OutputFile: c.Logging.File,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
		JSON:       c.Logging.JSON,
	}
}
