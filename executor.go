package distexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jdziat/distexec/pkg/clusterstate"
	"github.com/jdziat/distexec/pkg/config"
	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/dispatch"
	"github.com/jdziat/distexec/pkg/metrics"
	"github.com/jdziat/distexec/pkg/registry"
	"github.com/jdziat/distexec/pkg/retry"
	"github.com/jdziat/distexec/pkg/storage"
)

// Executor dispatches jobs and coordinates shard write retries for one
// node.
type Executor struct {
	node         NodeID
	logger       *slog.Logger
	registry     *registry.Registry
	dispatcher   *dispatch.Coordinator
	retries      *retry.Pool
	shards       core.ShardExecutor
	jobLog       core.JobLog
	ownedLog     *storage.GormJobLog
	metrics      *metrics.Metrics
	events       *core.EventBus
	clusterState *clusterstate.Service

	pruneStop chan struct{}
	pruneDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates an executor sending job requests through transport.
func New(transport Transport, opts ...Option) (*Executor, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt.apply(&s)
	}

	logger := s.logger
	if s.node != "" {
		logger = logger.With("local_node", string(s.node))
	}

	e := &Executor{
		node:         s.node,
		logger:       logger,
		jobLog:       s.jobLog,
		metrics:      s.metrics,
		events:       core.NewEventBus(),
		clusterState: clusterstate.NewService(logger),
		shards:       s.shards,
	}
	if e.shards == nil {
		if se, ok := transport.(core.ShardExecutor); ok {
			e.shards = se
		}
	}
	if s.clusterModsOn {
		e.clusterState.AddModifier(clusterstate.Tables{})
	}

	if s.jobLogDSN != "" {
		jl, err := storage.OpenJobLog(context.Background(), s.jobLogDSN, s.pool...)
		if err != nil {
			return nil, err
		}
		e.ownedLog = jl
		e.jobLog = jl
	}

	e.registry = registry.New(registry.WithLogger(logger))
	if s.sweep != nil {
		e.registry.StartSweeper(s.sweep, s.contextTTL)
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(e.metrics),
		dispatch.WithEventBus(e.events),
	}
	if s.local != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithLocalExecutor(s.local))
	}
	if e.jobLog != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithJobLog(e.jobLog))
	}
	if s.closeTimeout > 0 {
		dispatchOpts = append(dispatchOpts, dispatch.WithCloseTimeout(s.closeTimeout))
	}
	e.dispatcher = dispatch.New(transport, e.registry, dispatchOpts...)

	e.retries = retry.NewPool(
		retry.WithConfig(s.retry),
		retry.WithLogger(logger),
		retry.WithMetrics(e.metrics),
		retry.WithEventBus(e.events),
	)

	if s.prune != nil && e.jobLog != nil && s.retention > 0 {
		e.startPruner(s.prune, s.retention)
	}
	return e, nil
}

// NewFromConfig creates an executor from a loaded configuration. Extra
// options are applied after the configuration.
func NewFromConfig(cfg config.Config, transport Transport, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	base := []Option{
		WithNode(NodeID(cfg.Node)),
		WithLogger(cfg.Logging.Logger(os.Stderr)),
		WithRetryConfig(cfg.Retry),
		WithCloseTimeout(cfg.Dispatch.CloseTimeout),
	}
	if s := cfg.SweepSchedule(); s != nil {
		base = append(base, WithContextSweeper(s, cfg.Registry.ContextTTL))
	}
	if cfg.JobLog.DSN != "" {
		base = append(base, WithJobLogDSN(cfg.JobLog.DSN, storage.WithPoolConfig(cfg.JobLog.Pool)))
		if s := cfg.PruneSchedule(); s != nil {
			base = append(base, WithJobLogPruning(s, cfg.JobLog.Retention))
		}
	}
	if cfg.Metrics.Enabled {
		base = append(base, WithMetrics(metrics.New(cfg.Metrics.Namespace)))
	}
	return New(transport, append(base, opts...)...)
}

// Node returns the local node id.
func (e *Executor) Node() NodeID {
	return e.node
}

// Dispatch sends plan to its nodes. The returned result resolves exactly
// once with the merged rows or the first failure.
func (e *Executor) Dispatch(ctx context.Context, plan *Plan) *JobResult {
	return e.dispatcher.Dispatch(ctx, plan)
}

// Write performs an ordinary shard write. Retryable failures are retried
// once after the node's current backoff delay. l is invoked exactly once.
func (e *Executor) Write(ctx context.Context, req *ShardRequest, l RetryListener) {
	if e.shards == nil {
		l(nil, ErrNoShardExecutor)
		return
	}
	e.retries.Get(req.Node).Write(ctx, req, e.shards, l)
}

// Retry retries a failed shard write through the node's retry coordinator.
// l is invoked exactly once.
func (e *Executor) Retry(ctx context.Context, req *ShardRequest, mode RetryMode, l RetryListener) {
	if e.shards == nil {
		l(nil, ErrNoShardExecutor)
		return
	}
	e.retries.Get(req.Node).Retry(ctx, req, e.shards, mode, l)
}

// RetryStats returns a snapshot of the retry coordinator of node.
func (e *Executor) RetryStats(node NodeID) retry.Stats {
	return e.retries.Get(node).Stats()
}

// RemoveNode closes the retry coordinator of a node that left the cluster.
func (e *Executor) RemoveNode(node NodeID) error {
	return e.retries.Remove(node)
}

// Registry returns the job context registry used for page-fetch
// correlation.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// SetBucket forwards a fetched page to the context registered for a job's
// merge fragment.
func (e *Executor) SetBucket(jobID JobID, fragmentID, slot int, b Bucket, isLast bool, l PageListener) error {
	return e.registry.SetBucket(jobID, fragmentID, slot, b, isLast, l)
}

// ClusterState returns the DDL cluster state modifier service.
func (e *Executor) ClusterState() *ClusterStateService {
	return e.clusterState
}

// JobLog returns the job log, or nil if none is configured.
func (e *Executor) JobLog() JobLog {
	return e.jobLog
}

// Metrics returns the metrics, or nil if none are configured.
func (e *Executor) Metrics() *metrics.Metrics {
	return e.metrics
}

// Events returns a channel for receiving executor events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (e *Executor) Events() <-chan Event {
	return e.events.Subscribe()
}

// Unsubscribe removes a subscriber channel created by Events().
func (e *Executor) Unsubscribe(ch <-chan Event) {
	e.events.Unsubscribe(ch)
}

// Close shuts the executor down gracefully: outstanding retries get the
// node's current delay plus the close grace to finish, and remote contexts
// of resolved jobs are closed before ctx is done.
func (e *Executor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		var errs []error
		e.stopMaintenance()
		if err := e.retries.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := e.dispatcher.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("waiting for context close: %w", err))
		}
		if err := e.closeJobLog(); err != nil {
			errs = append(errs, err)
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// Shutdown stops the executor immediately. Pending retries fail with
// ErrCoordinatorClosed.
func (e *Executor) Shutdown() {
	e.closeOnce.Do(func() {
		e.stopMaintenance()
		e.retries.Shutdown()
		e.closeErr = e.closeJobLog()
	})
}

func (e *Executor) stopMaintenance() {
	e.registry.StopSweeper()
	if e.pruneStop != nil {
		close(e.pruneStop)
		<-e.pruneDone
	}
}

func (e *Executor) closeJobLog() error {
	if e.ownedLog == nil {
		return nil
	}
	sqlDB, err := e.ownedLog.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (e *Executor) startPruner(s Schedule, retention time.Duration) {
	e.pruneStop = make(chan struct{})
	e.pruneDone = make(chan struct{})
	go func() {
		defer close(e.pruneDone)
		next := s.Next(time.Now())
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-e.pruneStop:
				timer.Stop()
				return
			case <-timer.C:
			}
			n, err := e.jobLog.PruneFinished(context.Background(), retention)
			if err != nil {
				e.logger.Error("failed to prune job log", "error", err)
			} else if n > 0 {
				e.logger.Info("pruned job log", "jobs", n)
			}
			next = s.Next(time.Now())
		}
	}()
}
