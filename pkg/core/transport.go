package core

import (
	"context"
)

// JobRequest asks one node to execute its fragments of a job.
type JobRequest struct {
	JobID     JobID
	Fragments []*Fragment
}

// JobResponse is a node's answer to a JobRequest. Direct holds the encoded
// bucket when the job runs in direct-response mode and is nil otherwise.
type JobResponse struct {
	Direct []byte
}

// HasDirect reports whether the response embeds a bucket.
func (r *JobResponse) HasDirect() bool {
	return r != nil && r.Direct != nil
}

// Transport reaches other cluster nodes.
type Transport interface {
	// ExecuteJob runs the request's fragments on node.
	ExecuteJob(ctx context.Context, node NodeID, req *JobRequest) (*JobResponse, error)

	// CloseContext releases the execution context a node kept for a job.
	CloseContext(ctx context.Context, node NodeID, jobID JobID) error
}

// LocalExecutor runs fragments routed to LocalNodeID in-process.
type LocalExecutor interface {
	ExecuteJob(ctx context.Context, req *JobRequest) (*JobResponse, error)
}

// LocalExecutorFunc adapts a function to LocalExecutor.
type LocalExecutorFunc func(ctx context.Context, req *JobRequest) (*JobResponse, error)

func (f LocalExecutorFunc) ExecuteJob(ctx context.Context, req *JobRequest) (*JobResponse, error) {
	return f(ctx, req)
}

// ShardItem is a single document write inside a shard request.
type ShardItem struct {
	ID     string
	Source []byte
}

// ShardRequest is a write against one shard.
type ShardRequest struct {
	Index   string
	ShardID int
	Node    NodeID
	Items   []ShardItem
}

// ShardFailure describes an item that could not be written.
type ShardFailure struct {
	Location int
	ID       string
	Message  string
}

// ShardResponse is the outcome of a ShardRequest.
type ShardResponse struct {
	ShardID   int
	Locations []int
	Failures  []ShardFailure
}

// ShardExecutor performs a single write attempt.
type ShardExecutor interface {
	Execute(ctx context.Context, req *ShardRequest) (*ShardResponse, error)
}

// ShardExecutorFunc adapts a function to ShardExecutor.
type ShardExecutorFunc func(ctx context.Context, req *ShardRequest) (*ShardResponse, error)

func (f ShardExecutorFunc) Execute(ctx context.Context, req *ShardRequest) (*ShardResponse, error) {
	return f(ctx, req)
}
