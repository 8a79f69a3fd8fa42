package distexec

import (
	"log/slog"
	"time"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/metrics"
	"github.com/jdziat/distexec/pkg/retry"
	"github.com/jdziat/distexec/pkg/schedule"
	"github.com/jdziat/distexec/pkg/storage"
)

type settings struct {
	node          NodeID
	logger        *slog.Logger
	local         core.LocalExecutor
	shards        core.ShardExecutor
	jobLog        core.JobLog
	jobLogDSN     string
	pool          []storage.PoolOption
	metrics       *metrics.Metrics
	retry         retry.Config
	closeTimeout  time.Duration
	sweep         schedule.Schedule
	contextTTL    time.Duration
	prune         schedule.Schedule
	retention     time.Duration
	clusterModsOn bool
}

func defaultSettings() settings {
	return settings{
		logger:        slog.Default(),
		retry:         retry.DefaultConfig(),
		clusterModsOn: true,
	}
}

// Option configures an Executor.
type Option interface {
	apply(*settings)
}

type optionFunc func(*settings)

func (f optionFunc) apply(s *settings) { f(s) }

// WithNode names the local node. It is attached to every log line.
func WithNode(node NodeID) Option {
	return optionFunc(func(s *settings) {
		s.node = node
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *settings) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithLocalExecutor runs fragments assigned to LocalNodeID in-process.
func WithLocalExecutor(e LocalExecutor) Option {
	return optionFunc(func(s *settings) {
		s.local = e
	})
}

// WithShardExecutor sets the single-attempt shard write RPC. By default
// the transport is used when it implements ShardExecutor.
func WithShardExecutor(e ShardExecutor) Option {
	return optionFunc(func(s *settings) {
		s.shards = e
	})
}

// WithJobLog records job accounting in jl.
func WithJobLog(jl JobLog) Option {
	return optionFunc(func(s *settings) {
		s.jobLog = jl
	})
}

// WithJobLogDSN opens, migrates and owns a job log database. postgres://
// URLs select PostgreSQL, anything else SQLite.
func WithJobLogDSN(dsn string, opts ...storage.PoolOption) Option {
	return optionFunc(func(s *settings) {
		s.jobLogDSN = dsn
		s.pool = opts
	})
}

// WithJobLogPruning deletes finished jobs older than retention on schedule.
func WithJobLogPruning(sched Schedule, retention time.Duration) Option {
	return optionFunc(func(s *settings) {
		s.prune = sched
		s.retention = retention
	})
}

// WithMetrics records dispatch and retry metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return optionFunc(func(s *settings) {
		s.metrics = m
	})
}

// WithRetryConfig tunes the per-node retry coordinators.
func WithRetryConfig(cfg RetryConfig) Option {
	return optionFunc(func(s *settings) {
		s.retry = cfg
	})
}

// WithCloseTimeout bounds each remote context close call.
func WithCloseTimeout(d time.Duration) Option {
	return optionFunc(func(s *settings) {
		s.closeTimeout = d
	})
}

// WithContextSweeper fails registered job contexts older than ttl on
// schedule.
func WithContextSweeper(sched Schedule, ttl time.Duration) Option {
	return optionFunc(func(s *settings) {
		s.sweep = sched
		s.contextTTL = ttl
	})
}

// WithoutClusterStateTables skips registering the built-in table
// bookkeeping modifier on the cluster state service.
func WithoutClusterStateTables() Option {
	return optionFunc(func(s *settings) {
		s.clusterModsOn = false
	})
}
