package retry

import (
	"log/slog"
	"time"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/metrics"
)

// Config holds coordinator tuning.
type Config struct {
	// DelayStep is added to the shared delay on every attempt.
	// Default: 100ms
	DelayStep time.Duration `yaml:"delay_step"`

	// MaxDelay caps the shared delay.
	// Default: 1s
	MaxDelay time.Duration `yaml:"max_delay"`

	// CloseGrace is added to the current delay when Close waits for
	// outstanding retries.
	// Default: 100ms
	CloseGrace time.Duration `yaml:"close_grace"`
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		DelayStep:  DefaultDelayStep,
		MaxDelay:   DefaultMaxDelay,
		CloseGrace: DefaultCloseGrace,
	}
}

type options struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *core.EventBus
}

func defaultOptions() options {
	return options{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
}

// Option configures a Coordinator or Pool.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithConfig replaces the whole configuration. Zero fields keep their
// defaults.
func WithConfig(cfg Config) Option {
	return optionFunc(func(o *options) {
		if cfg.DelayStep > 0 {
			o.config.DelayStep = cfg.DelayStep
		}
		if cfg.MaxDelay > 0 {
			o.config.MaxDelay = cfg.MaxDelay
		}
		if cfg.CloseGrace > 0 {
			o.config.CloseGrace = cfg.CloseGrace
		}
	})
}

// WithDelay sets the backoff step and cap.
func WithDelay(step, max time.Duration) Option {
	return optionFunc(func(o *options) {
		o.config.DelayStep = step
		o.config.MaxDelay = max
	})
}

// WithCloseGrace sets how long Close waits beyond the current delay.
func WithCloseGrace(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.config.CloseGrace = d
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithMetrics records retry activity.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(o *options) {
		o.metrics = m
	})
}

// WithEventBus emits RetryScheduled events.
func WithEventBus(b *core.EventBus) Option {
	return optionFunc(func(o *options) {
		o.events = b
	})
}
