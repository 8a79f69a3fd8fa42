// Package distexec executes distributed query plans and serializes retried
// shard writes per node.
//
// This is the main package users should import. It re-exports the public
// types of the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Connect the executor to the cluster transport
//	exec, _ := distexec.New(transport,
//	    distexec.WithJobLogDSN("jobs.db"),
//	)
//	defer exec.Close(context.Background())
//
//	// Dispatch a plan and wait for the merged result
//	result, err := exec.Dispatch(ctx, plan).Wait(ctx)
//
//	// Write to a shard, retrying on transport failures
//	exec.Write(ctx, req, func(resp *distexec.ShardResponse, err error) {
//	    ...
//	})
package distexec

import (
	"github.com/jdziat/distexec/pkg/clusterstate"
	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/downstream"
	"github.com/jdziat/distexec/pkg/future"
	"github.com/jdziat/distexec/pkg/registry"
	"github.com/jdziat/distexec/pkg/retry"
	"github.com/jdziat/distexec/pkg/schedule"
	"github.com/jdziat/distexec/pkg/security"
	"github.com/jdziat/distexec/pkg/storage"
)

// Type aliases
type (
	// NodeID identifies a cluster node.
	NodeID = core.NodeID

	// JobID identifies a dispatched job.
	JobID = core.JobID

	// Plan is the set of fragments executed for one job.
	Plan = core.Plan

	// Fragment is a unit of a distributed plan.
	Fragment = core.Fragment

	// MergeFragment combines per-source buckets into the job result.
	MergeFragment = core.MergeFragment

	// Downstream describes a consumer of a fragment's output.
	Downstream = core.Downstream

	// NodeGroup is the list of fragments one node executes.
	NodeGroup = core.NodeGroup

	// DataType names the type of a result column.
	DataType = core.DataType

	// Row is one result row.
	Row = core.Row

	// Bucket is an ordered sequence of rows from one source.
	Bucket = core.Bucket

	// TaskResult is the merged result of a job.
	TaskResult = core.TaskResult

	// JobResult resolves once a dispatched job completed or failed.
	JobResult = future.Future[core.TaskResult]

	// Transport reaches other cluster nodes.
	Transport = core.Transport

	// LocalExecutor runs fragments routed to LocalNodeID in-process.
	LocalExecutor = core.LocalExecutor

	// LocalExecutorFunc adapts a function to LocalExecutor.
	LocalExecutorFunc = core.LocalExecutorFunc

	// JobRequest asks one node to execute its fragments of a job.
	JobRequest = core.JobRequest

	// JobResponse is a node's answer to a JobRequest.
	JobResponse = core.JobResponse

	// ShardRequest is a write against one shard.
	ShardRequest = core.ShardRequest

	// ShardItem is a single document write inside a shard request.
	ShardItem = core.ShardItem

	// ShardResponse is the outcome of a ShardRequest.
	ShardResponse = core.ShardResponse

	// ShardExecutor performs a single write attempt.
	ShardExecutor = core.ShardExecutor

	// ShardExecutorFunc adapts a function to ShardExecutor.
	ShardExecutorFunc = core.ShardExecutorFunc

	// JobLog records job and operation accounting.
	JobLog = core.JobLog

	// JobEntry is one row of the job log.
	JobEntry = core.JobEntry

	// Event is the interface for all executor events.
	Event = core.Event

	// JobDispatched is emitted once a job's requests have been sent.
	JobDispatched = core.JobDispatched

	// JobFinished is emitted when a job's result resolves.
	JobFinished = core.JobFinished

	// ContextCloseFailed is emitted when a remote context could not be closed.
	ContextCloseFailed = core.ContextCloseFailed

	// RetryScheduled is emitted when a write is handed to a retry coordinator.
	RetryScheduled = core.RetryScheduled

	// RetryMode selects how a retry is run.
	RetryMode = retry.Mode

	// RetryListener receives the outcome of a write.
	RetryListener = retry.Listener

	// RetryConfig holds retry coordinator tuning.
	RetryConfig = retry.Config

	// PageListener is signalled after a page of a source was consumed.
	PageListener = downstream.PageConsumeListener

	// Registry maps (job, fragment) to page downstream contexts.
	Registry = registry.Registry

	// Schedule defines when recurring maintenance runs.
	Schedule = schedule.Schedule

	// PoolConfig holds job log connection pool configuration.
	PoolConfig = storage.PoolConfig

	// ClusterStateService applies DDL cluster state modifiers.
	ClusterStateService = clusterstate.Service

	// NoRetryError indicates an error that should not be retried.
	NoRetryError = core.NoRetryError

	// ProtocolError reports malformed or missing data from a peer.
	ProtocolError = core.ProtocolError

	// TransportError reports a failure to reach a node.
	TransportError = core.TransportError
)

// Retry modes
const (
	Blocking = retry.Blocking
	Deferred = retry.Deferred
)

// LocalNodeID routes fragments to the local executor.
const LocalNodeID = core.LocalNodeID

// Column types
const (
	TypeUndefined = core.TypeUndefined
	TypeString    = core.TypeString
	TypeLong      = core.TypeLong
	TypeDouble    = core.TypeDouble
	TypeBoolean   = core.TypeBoolean
	TypeTimestamp = core.TypeTimestamp
)

// Limits
const (
	MaxNodeIDLength       = security.MaxNodeIDLength
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxRetryDelay         = security.MaxRetryDelay
	MaxCloseTimeout       = security.MaxCloseTimeout
)

// NewPlan builds a plan for a new job.
func NewPlan(merge *MergeFragment, fragments ...*Fragment) *Plan {
	return core.NewPlan(merge, fragments...)
}

// NewJobID returns a random job id.
func NewJobID() JobID {
	return core.NewJobID()
}

// Every creates a schedule that runs at fixed intervals.
var Every = schedule.Every

// Cron creates a schedule from a cron expression.
var Cron = schedule.Cron
