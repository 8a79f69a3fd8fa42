package dispatch

import (
	"log/slog"
	"time"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/metrics"
	"github.com/jdziat/distexec/pkg/security"
)

// DefaultCloseTimeout bounds each remote context close call.
const DefaultCloseTimeout = 10 * time.Second

// Option configures a Coordinator.
type Option interface {
	apply(*Coordinator)
}

type optionFunc func(*Coordinator)

func (f optionFunc) apply(c *Coordinator) { f(c) }

// WithLocalExecutor runs fragments assigned to core.LocalNodeID in-process.
func WithLocalExecutor(e core.LocalExecutor) Option {
	return optionFunc(func(c *Coordinator) {
		c.local = e
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithJobLog records every dispatched job and its merge operation.
func WithJobLog(jl core.JobLog) Option {
	return optionFunc(func(c *Coordinator) {
		c.jobLog = jl
	})
}

// WithMetrics records dispatch activity.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(c *Coordinator) {
		c.metrics = m
	})
}

// WithEventBus emits job lifecycle events.
func WithEventBus(b *core.EventBus) Option {
	return optionFunc(func(c *Coordinator) {
		c.events = b
	})
}

// WithCloseTimeout bounds each remote context close call.
// Values are clamped to (0, security.MaxCloseTimeout].
func WithCloseTimeout(d time.Duration) Option {
	return optionFunc(func(c *Coordinator) {
		c.closeTimeout = security.ClampCloseTimeout(d)
	})
}
