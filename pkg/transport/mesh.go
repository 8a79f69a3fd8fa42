// Package transport provides an in-process cluster transport. Every node
// joined to a Mesh is served by a Handler; requests for unknown nodes fail
// with a core.TransportError.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jdziat/distexec/pkg/core"
)

// ErrUnknownNode is returned for requests to nodes that never joined or
// already left the mesh.
var ErrUnknownNode = errors.New("distexec: unknown node")

// Handler serves the requests addressed to one node.
type Handler interface {
	ExecuteJob(ctx context.Context, req *core.JobRequest) (*core.JobResponse, error)
	CloseContext(ctx context.Context, jobID core.JobID) error
	ExecuteShard(ctx context.Context, req *core.ShardRequest) (*core.ShardResponse, error)
}

// HandlerFuncs adapts plain functions to Handler. Nil functions succeed
// with an empty result.
type HandlerFuncs struct {
	Execute func(ctx context.Context, req *core.JobRequest) (*core.JobResponse, error)
	Close   func(ctx context.Context, jobID core.JobID) error
	Shard   func(ctx context.Context, req *core.ShardRequest) (*core.ShardResponse, error)
}

func (h HandlerFuncs) ExecuteJob(ctx context.Context, req *core.JobRequest) (*core.JobResponse, error) {
	if h.Execute == nil {
		return &core.JobResponse{}, nil
	}
	return h.Execute(ctx, req)
}

func (h HandlerFuncs) CloseContext(ctx context.Context, jobID core.JobID) error {
	if h.Close == nil {
		return nil
	}
	return h.Close(ctx, jobID)
}

func (h HandlerFuncs) ExecuteShard(ctx context.Context, req *core.ShardRequest) (*core.ShardResponse, error) {
	if h.Shard == nil {
		locations := make([]int, len(req.Items))
		for i := range locations {
			locations[i] = i
		}
		return &core.ShardResponse{ShardID: req.ShardID, Locations: locations}, nil
	}
	return h.Shard(ctx, req)
}

// Calls counts the requests a node received.
type Calls struct {
	Execute int
	Close   int
	Shard   int
}

// Mesh connects in-process nodes. It implements core.Transport and
// core.ShardExecutor.
type Mesh struct {
	mu    sync.RWMutex
	nodes map[core.NodeID]Handler
	calls map[core.NodeID]*Calls
}

var (
	_ core.Transport     = (*Mesh)(nil)
	_ core.ShardExecutor = (*Mesh)(nil)
)

// NewMesh creates an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{
		nodes: make(map[core.NodeID]Handler),
		calls: make(map[core.NodeID]*Calls),
	}
}

// Join adds node to the mesh, replacing any previous handler.
func (m *Mesh) Join(node core.NodeID, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node] = h
	if _, ok := m.calls[node]; !ok {
		m.calls[node] = &Calls{}
	}
}

// Leave removes node from the mesh.
func (m *Mesh) Leave(node core.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, node)
}

// Calls returns a copy of the request counters of node.
func (m *Mesh) Calls(node core.NodeID) Calls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.calls[node]; ok {
		return *c
	}
	return Calls{}
}

func (m *Mesh) handler(node core.NodeID, count func(*Calls)) (Handler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[node]
	if !ok {
		c = &Calls{}
		m.calls[node] = c
	}
	count(c)
	h, ok := m.nodes[node]
	if !ok {
		return nil, core.NewTransportError(node, ErrUnknownNode)
	}
	return h, nil
}

// ExecuteJob implements core.Transport.
func (m *Mesh) ExecuteJob(ctx context.Context, node core.NodeID, req *core.JobRequest) (*core.JobResponse, error) {
	h, err := m.handler(node, func(c *Calls) { c.Execute++ })
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.ExecuteJob(ctx, req)
}

// CloseContext implements core.Transport.
func (m *Mesh) CloseContext(ctx context.Context, node core.NodeID, jobID core.JobID) error {
	h, err := m.handler(node, func(c *Calls) { c.Close++ })
	if err != nil {
		return err
	}
	return h.CloseContext(ctx, jobID)
}

// Execute implements core.ShardExecutor, routing on req.Node.
func (m *Mesh) Execute(ctx context.Context, req *core.ShardRequest) (*core.ShardResponse, error) {
	h, err := m.handler(req.Node, func(c *Calls) { c.Shard++ })
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.ExecuteShard(ctx, req)
}

// DirectRows returns an Execute function answering every job request with
// rows embedded as a direct response.
func DirectRows(types []core.DataType, rows core.Bucket) func(context.Context, *core.JobRequest) (*core.JobResponse, error) {
	streamers := core.StreamersFor(types)
	return func(ctx context.Context, req *core.JobRequest) (*core.JobResponse, error) {
		data, err := core.EncodeBucket(streamers, rows)
		if err != nil {
			return nil, fmt.Errorf("encode rows for job %s: %w", req.JobID, err)
		}
		return &core.JobResponse{Direct: data}, nil
	}
}
