package retry

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jdziat/distexec/pkg/core"
)

// Pool lazily creates one Coordinator per node.
type Pool struct {
	opts options

	mu           sync.Mutex
	coordinators map[core.NodeID]*Coordinator
	closed       bool
}

// NewPool creates a pool whose coordinators share opts.
func NewPool(opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Pool{
		opts:         o,
		coordinators: make(map[core.NodeID]*Coordinator),
	}
}

// Get returns the coordinator for node, creating it on first use. After
// the pool is closed it returns a closed coordinator that fails every call
// with core.ErrCoordinatorClosed.
func (p *Pool) Get(node core.NodeID) *Coordinator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.coordinators[node]; ok {
		return c
	}
	c := newCoordinator(node, p.opts)
	if p.closed {
		c.Shutdown()
		return c
	}
	p.coordinators[node] = c
	return c
}

// Nodes returns the nodes that currently have a coordinator.
func (p *Pool) Nodes() []core.NodeID {
	p.mu.Lock()
	defer p.mu.Unlock()
	nodes := make([]core.NodeID, 0, len(p.coordinators))
	for n := range p.coordinators {
		nodes = append(nodes, n)
	}
	return nodes
}

// Remove closes and forgets the coordinator of node, typically when the
// node leaves the cluster.
func (p *Pool) Remove(node core.NodeID) error {
	p.mu.Lock()
	c, ok := p.coordinators[node]
	delete(p.coordinators, node)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close()
}

// Close gracefully closes every coordinator in parallel.
func (p *Pool) Close() error {
	var g errgroup.Group
	for _, c := range p.drain() {
		g.Go(c.Close)
	}
	return g.Wait()
}

// Shutdown forcibly shuts down every coordinator.
func (p *Pool) Shutdown() {
	for _, c := range p.drain() {
		c.Shutdown()
	}
}

func (p *Pool) drain() []*Coordinator {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	all := make([]*Coordinator, 0, len(p.coordinators))
	for _, c := range p.coordinators {
		all = append(all, c)
	}
	p.coordinators = make(map[core.NodeID]*Coordinator)
	return all
}
