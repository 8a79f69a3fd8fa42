// Package config loads executor configuration from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/metrics"
	"github.com/jdziat/distexec/pkg/retry"
	"github.com/jdziat/distexec/pkg/schedule"
	"github.com/jdziat/distexec/pkg/security"
	"github.com/jdziat/distexec/pkg/storage"
)

// Environment variables overriding file settings.
const (
	EnvNode           = "DISTEXEC_NODE"
	EnvLogLevel       = "DISTEXEC_LOG_LEVEL"
	EnvLogFormat      = "DISTEXEC_LOG_FORMAT"
	EnvJobLogDSN      = "DISTEXEC_JOB_LOG_DSN"
	EnvMetricsAddress = "DISTEXEC_METRICS_ADDRESS"
)

// Config is the full executor configuration.
type Config struct {
	Node     string         `yaml:"node"`
	Logging  LoggingConfig  `yaml:"logging"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Retry    retry.Config   `yaml:"retry"`
	Registry RegistryConfig `yaml:"registry"`
	JobLog   JobLogConfig   `yaml:"job_log"`
	Metrics  metrics.Config `yaml:"metrics"`
}

// DispatchConfig configures job dispatch.
type DispatchConfig struct {
	// CloseTimeout bounds each remote context close call.
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

// RegistryConfig configures the job context registry.
type RegistryConfig struct {
	// SweepSchedule is a cron expression or descriptor ("@every 1m").
	// Empty disables the sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`

	// ContextTTL is how long a registered context may stay unresolved
	// before the sweeper fails it.
	ContextTTL time.Duration `yaml:"context_ttl"`
}

// JobLogConfig configures job accounting.
type JobLogConfig struct {
	// DSN selects the database. Empty disables the job log.
	DSN  string             `yaml:"dsn"`
	Pool storage.PoolConfig `yaml:"pool"`

	// Retention is how long finished jobs are kept.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is a cron expression or descriptor. Empty disables
	// pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Dispatch: DispatchConfig{
			CloseTimeout: 10 * time.Second,
		},
		Retry: retry.DefaultConfig(),
		Registry: RegistryConfig{
			SweepSchedule: "@every 1m",
			ContextTTL:    10 * time.Minute,
		},
		JobLog: JobLogConfig{
			Pool:          storage.DefaultPoolConfig(),
			Retention:     24 * time.Hour,
			PruneSchedule: "@hourly",
		},
		Metrics: metrics.Config{
			Namespace: "distexec",
			Address:   ":9090",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and applies environment
// overrides.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	c.Node = getenvDefault(EnvNode, c.Node)
	c.Logging.Level = getenvDefault(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = getenvDefault(EnvLogFormat, c.Logging.Format)
	c.JobLog.DSN = getenvDefault(EnvJobLogDSN, c.JobLog.DSN)
	if addr := os.Getenv(EnvMetricsAddress); addr != "" {
		c.Metrics.Address = addr
		c.Metrics.Enabled = true
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Node != "" {
		if err := security.ValidateNodeID(core.NodeID(c.Node)); err != nil {
			errs = append(errs, fmt.Errorf("node: %w", err))
		}
	}
	if c.Registry.SweepSchedule != "" {
		if _, err := schedule.ParseCron(c.Registry.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("registry.sweep_schedule: %w", err))
		}
		if c.Registry.ContextTTL <= 0 {
			errs = append(errs, errors.New("registry.context_ttl must be positive"))
		}
	}
	if c.JobLog.PruneSchedule != "" && c.JobLog.DSN != "" {
		if _, err := schedule.ParseCron(c.JobLog.PruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("job_log.prune_schedule: %w", err))
		}
		if c.JobLog.Retention <= 0 {
			errs = append(errs, errors.New("job_log.retention must be positive"))
		}
	}
	if c.Retry.MaxDelay > 0 && c.Retry.DelayStep > c.Retry.MaxDelay {
		errs = append(errs, errors.New("retry.delay_step exceeds retry.max_delay"))
	}
	return errors.Join(errs...)
}

// SweepSchedule returns the registry sweep schedule, or nil when sweeping
// is disabled.
func (c Config) SweepSchedule() schedule.Schedule {
	if c.Registry.SweepSchedule == "" {
		return nil
	}
	s, err := schedule.ParseCron(c.Registry.SweepSchedule)
	if err != nil {
		return nil
	}
	return s
}

// PruneSchedule returns the job log prune schedule, or nil when pruning is
// disabled.
func (c Config) PruneSchedule() schedule.Schedule {
	if c.JobLog.PruneSchedule == "" || c.JobLog.DSN == "" {
		return nil
	}
	s, err := schedule.ParseCron(c.JobLog.PruneSchedule)
	if err != nil {
		return nil
	}
	return s
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
