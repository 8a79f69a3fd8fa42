package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/downstream"
	"github.com/jdziat/distexec/pkg/future"
	"github.com/jdziat/distexec/pkg/metrics"
	"github.com/jdziat/distexec/pkg/registry"
)

// MergeOperation names the job log operation covering the local merge.
const MergeOperation = "merge"

// Coordinator dispatches jobs to their nodes and merges the results.
type Coordinator struct {
	transport    core.Transport
	registry     *registry.Registry
	local        core.LocalExecutor
	logger       *slog.Logger
	jobLog       core.JobLog
	metrics      *metrics.Metrics
	events       *core.EventBus
	closeTimeout time.Duration

	pending tracker
}

// localCloser is implemented by local executors that keep contexts for
// later fetches.
type localCloser interface {
	CloseContext(ctx context.Context, jobID core.JobID) error
}

// New creates a coordinator sending requests through transport. Paged jobs
// register their merge context in reg.
func New(transport core.Transport, reg *registry.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:    transport,
		registry:     reg,
		logger:       slog.Default(),
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	if c.registry == nil {
		c.registry = registry.New(registry.WithLogger(c.logger))
	}
	return c
}

// Registry returns the job context registry paged jobs register in.
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// job is the state of one dispatched job.
type job struct {
	plan      *core.Plan
	direct    bool
	streamers []core.Streamer
	merge     *downstream.Context
	result    *future.Future[core.TaskResult]
	started   time.Time
	opID      string
	// logged is closed once the job log start entries were written.
	logged chan struct{}
}

// Dispatch sends plan to its nodes and returns the future job result. Each
// node receives exactly one request. The first failure resolves the
// future; responses arriving afterwards are ignored. Cancelling ctx fails
// the job if it has not resolved yet.
func (c *Coordinator) Dispatch(ctx context.Context, plan *core.Plan) *future.Future[core.TaskResult] {
	result := future.New[core.TaskResult]()
	if err := plan.Validate(); err != nil {
		result.Fail(err)
		return result
	}

	j := &job{
		plan:      plan,
		direct:    HasDirectResponse(plan.Fragments),
		streamers: core.StreamersFor(plan.Merge.InputTypes),
		result:    result,
		started:   time.Now(),
		logged:    make(chan struct{}),
	}
	logger := c.logger.With("job_id", plan.JobID.String())

	sources := plan.Merge.Sources
	if sources == 0 && len(plan.Fragments) > 0 {
		sources = len(plan.Fragments[len(plan.Fragments)-1].Nodes)
	}

	merger := downstream.Concat
	if len(plan.Merge.OrderBy) > 0 {
		merger = downstream.SortedMerge(plan.Merge.OrderBy)
	}
	j.merge = downstream.New(
		downstream.ConsumerFuncs{
			OnFinish: func(b core.Bucket) { result.Set(core.TaskResult{Rows: b}) },
			OnFail:   func(err error) { result.Fail(err) },
		},
		j.streamers,
		sources,
		downstream.WithMerger(merger),
		downstream.WithLogger(logger),
	)

	if !j.direct {
		if err := c.registry.Register(plan.JobID, plan.Merge.ID, j.merge); err != nil {
			result.Fail(err)
			return result
		}
	}

	groups := GroupByNode(plan.Fragments)
	if j.direct && len(groups) != sources {
		err := fmt.Errorf("%w: %d direct responses expected from %d nodes",
			core.ErrInvalidPlan, sources, len(groups))
		result.Fail(err)
		return result
	}
	c.recordStart(ctx, j, len(groups), logger)
	result.OnComplete(func(r core.TaskResult, err error) {
		c.recordFinish(ctx, j, r, err, logger)
	})

	retained := RetainedNodes(plan.Fragments)
	if len(retained) > 0 {
		c.pending.add(len(retained))
		result.OnComplete(func(core.TaskResult, error) {
			c.closeContexts(plan.JobID, retained, logger)
		})
	}

	stop := context.AfterFunc(ctx, func() { j.merge.Failure(ctx.Err()) })
	result.OnComplete(func(core.TaskResult, error) { stop() })

	if len(groups) == 0 {
		j.merge.Finish()
		return result
	}

	nodes := make([]core.NodeID, len(groups))
	for slot, g := range groups {
		nodes[slot] = g.Node
		go c.execute(ctx, j, slot, g, logger)
	}
	c.events.Emit(&core.JobDispatched{
		JobID:      plan.JobID,
		Nodes:      nodes,
		DirectMode: j.direct,
		Timestamp:  time.Now(),
	})
	logger.Debug("job dispatched", "nodes", len(nodes), "direct", j.direct)
	return result
}

// execute sends one node its fragments and feeds the outcome into the
// merge context.
func (c *Coordinator) execute(ctx context.Context, j *job, slot int, g core.NodeGroup, logger *slog.Logger) {
	req := &core.JobRequest{JobID: j.plan.JobID, Fragments: g.Fragments}
	resp, err := c.send(ctx, g.Node, req)
	c.metrics.NodeRequest(string(g.Node), err)
	if err != nil {
		logger.Debug("job request failed", "node", string(g.Node), "error", err)
		j.merge.Failure(err)
		return
	}

	if !j.direct {
		if resp.HasDirect() {
			j.merge.Failure(core.NewProtocolError(g.Node, core.ErrUnexpectedDirectResponse))
		}
		return
	}

	if !resp.HasDirect() {
		j.merge.Failure(core.NewProtocolError(g.Node, core.ErrMissingDirectResponse))
		return
	}
	bucket, err := core.DecodeBucket(j.streamers, resp.Direct)
	if err != nil {
		j.merge.Failure(core.NewProtocolError(g.Node, err))
		return
	}
	if err := j.merge.SetBucket(slot, bucket, true, downstream.DirectListener{}); err != nil {
		if errors.Is(err, downstream.ErrClosed) {
			logger.Debug("discarding response of resolved job", "node", string(g.Node))
			return
		}
		j.merge.Failure(err)
	}
}

// send routes a request to the local executor or the transport.
func (c *Coordinator) send(ctx context.Context, node core.NodeID, req *core.JobRequest) (*core.JobResponse, error) {
	if node.IsLocal() {
		if c.local == nil {
			return nil, core.ErrNoLocalExecutor
		}
		return c.local.ExecuteJob(ctx, req)
	}
	resp, err := c.transport.ExecuteJob(ctx, node, req)
	if err != nil {
		if core.IsTransport(err) || core.IsProtocol(err) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, core.NewTransportError(node, err)
	}
	return resp, nil
}

// closeContexts closes the contexts nodes kept for the job. Each close runs
// on its own goroutine; failures are logged and never propagated. The
// pending count was already incremented once per node by Dispatch.
func (c *Coordinator) closeContexts(jobID core.JobID, nodes []core.NodeID, logger *slog.Logger) {
	for _, node := range nodes {
		go func(node core.NodeID) {
			defer c.pending.done()
			ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout)
			defer cancel()

			err := c.closeContext(ctx, node, jobID)
			if err == nil {
				return
			}
			logger.Warn("failed to close remote job context", "node", string(node), "error", err)
			c.metrics.ContextCloseFailed(string(node))
			c.events.Emit(&core.ContextCloseFailed{
				JobID:     jobID,
				Node:      node,
				Error:     err,
				Timestamp: time.Now(),
			})
		}(node)
	}
}

func (c *Coordinator) closeContext(ctx context.Context, node core.NodeID, jobID core.JobID) error {
	if !node.IsLocal() {
		return c.transport.CloseContext(ctx, node, jobID)
	}
	if lc, ok := c.local.(localCloser); ok {
		return lc.CloseContext(ctx, jobID)
	}
	return nil
}

// Wait blocks until the remote contexts of every dispatched job have been
// closed and their job log entries written, or ctx is done. Unresolved
// jobs are waited for until they resolve.
func (c *Coordinator) Wait(ctx context.Context) error {
	return c.pending.wait(ctx)
}

// recordStart counts the job and writes its job log entries in the
// background. The pending count is released by recordFinish.
func (c *Coordinator) recordStart(ctx context.Context, j *job, nodeCount int, logger *slog.Logger) {
	c.metrics.JobDispatched(j.direct)
	if c.jobLog == nil {
		close(j.logged)
		return
	}
	c.pending.add(1)
	go func() {
		defer close(j.logged)
		c.logStart(context.WithoutCancel(ctx), j, nodeCount, logger)
	}()
}

func (c *Coordinator) logStart(ctx context.Context, j *job, nodeCount int, logger *slog.Logger) {
	entry := &core.JobEntry{
		ID:         j.plan.JobID.String(),
		Username:   j.plan.Username,
		Stmt:       j.plan.Stmt,
		Started:    j.started,
		NodeCount:  nodeCount,
		DirectMode: j.direct,
	}
	if err := c.jobLog.JobStarted(ctx, entry); err != nil {
		logger.Error("failed to record job start", "error", err)
		return
	}
	op := &core.OperationEntry{
		ID:      uuid.NewString(),
		JobID:   entry.ID,
		Name:    MergeOperation,
		Started: j.started,
	}
	if err := c.jobLog.OperationStarted(ctx, op); err != nil {
		logger.Error("failed to record merge operation start", "error", err)
		return
	}
	j.opID = op.ID
}

func (c *Coordinator) recordFinish(ctx context.Context, j *job, r core.TaskResult, err error, logger *slog.Logger) {
	elapsed := time.Since(j.started)
	c.events.Emit(&core.JobFinished{
		JobID:     j.plan.JobID,
		RowCount:  r.RowCount(),
		Error:     err,
		Duration:  elapsed,
		Timestamp: time.Now(),
	})
	c.metrics.JobFinished(elapsed.Seconds(), err)
	if err != nil {
		logger.Debug("job failed", "error", err, "duration", elapsed)
	}
	if c.jobLog == nil {
		return
	}
	go func() {
		defer c.pending.done()
		<-j.logged
		c.logFinish(context.WithoutCancel(ctx), j, r, err, logger)
	}()
}

func (c *Coordinator) logFinish(ctx context.Context, j *job, r core.TaskResult, err error, logger *slog.Logger) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if j.opID != "" {
		if ferr := c.jobLog.OperationFinished(ctx, j.opID, errMsg); ferr != nil {
			logger.Error("failed to record merge operation finish", "error", ferr)
		}
	}
	if ferr := c.jobLog.JobFinished(ctx, j.plan.JobID, r.RowCount(), errMsg); ferr != nil {
		logger.Error("failed to record job finish", "error", ferr)
	}
}
