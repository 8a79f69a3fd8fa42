package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/metrics"
)

// ErrCloseTimeout is returned by Close when retries were still outstanding
// after the grace period and had to be cancelled.
var ErrCloseTimeout = errors.New("distexec: retries still outstanding at close")

// Mode selects how a retry is run.
type Mode int

const (
	// Blocking runs the retry loop on the caller's goroutine.
	Blocking Mode = iota
	// Deferred schedules a single attempt after the current delay.
	Deferred
)

func (m Mode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case Deferred:
		return "deferred"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Listener receives the outcome of a write. Exactly one of resp and err is
// non-nil.
type Listener func(resp *core.ShardResponse, err error)

// Stats is a snapshot of a coordinator.
type Stats struct {
	ActiveWriters  int
	WaitingReaders int
	CurrentDelay   time.Duration
	PendingRetries int
}

// call delivers to its listener at most once.
type call struct {
	once sync.Once
	l    Listener
}

func (c *call) deliver(resp *core.ShardResponse, err error) {
	c.once.Do(func() {
		if c.l != nil {
			c.l(resp, err)
		}
	})
}

type pendingRetry struct {
	timer *time.Timer
	call  *call
}

// Coordinator serializes retried writes for one node.
type Coordinator struct {
	node    core.NodeID
	lock    *Lock
	delay   *Delay
	grace   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *core.EventBus

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending map[uint64]*pendingRetry
	nextID  uint64
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator for node.
func NewCoordinator(node core.NodeID, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return newCoordinator(node, o)
}

func newCoordinator(node core.NodeID, o options) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	grace := o.config.CloseGrace
	if grace <= 0 {
		grace = DefaultCloseGrace
	}
	return &Coordinator{
		node:    node,
		lock:    NewLock(),
		delay:   NewDelay(o.config.DelayStep, o.config.MaxDelay),
		grace:   grace,
		logger:  o.logger.With("node", string(node)),
		metrics: o.metrics,
		events:  o.events,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]*pendingRetry),
	}
}

// Node returns the node this coordinator serves.
func (c *Coordinator) Node() core.NodeID {
	return c.node
}

// Lock returns the coordinator's fairness lock.
func (c *Coordinator) Lock() *Lock {
	return c.lock
}

// Write performs an ordinary write attempt. It waits while a retry is in
// flight, executes once and hands retryable failures to a deferred retry.
// l is invoked exactly once.
func (c *Coordinator) Write(ctx context.Context, req *core.ShardRequest, exec core.ShardExecutor, l Listener) {
	cl := &call{l: l}
	if c.isClosed() {
		cl.deliver(nil, core.ErrCoordinatorClosed)
		return
	}
	if err := c.lock.AcquireRead(ctx); err != nil {
		cl.deliver(nil, err)
		return
	}
	resp, err := exec.Execute(ctx, req)
	if err != nil && core.IsRetryable(err) {
		c.logger.Debug("write failed, scheduling retry", "shard", req.ShardID, "error", err)
		c.schedule(ctx, req, exec, cl)
		return
	}
	cl.deliver(resp, err)
}

// Retry runs req again through exec. l is invoked exactly once with the
// final outcome.
func (c *Coordinator) Retry(ctx context.Context, req *core.ShardRequest, exec core.ShardExecutor, mode Mode, l Listener) {
	cl := &call{l: l}
	switch mode {
	case Blocking:
		c.retryBlocking(ctx, req, exec, cl)
	default:
		c.schedule(ctx, req, exec, cl)
	}
}

func (c *Coordinator) retryBlocking(ctx context.Context, req *core.ShardRequest, exec core.ShardExecutor, cl *call) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cl.deliver(nil, core.ErrCoordinatorClosed)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.metrics.RetryScheduled(string(c.node), Blocking.String())
	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.acquire(ctx); err != nil {
		c.finish(cl, nil, c.interrupted(err))
		return
	}

	for attempt := 1; ; attempt++ {
		if err := sleep(ctx, min(c.delay.Next(), c.delay.Max())); err != nil {
			c.release()
			c.finish(cl, nil, c.interrupted(err))
			return
		}

		c.metrics.RetryAttempt(string(c.node))
		resp, err := exec.Execute(ctx, req)
		if err == nil {
			c.delay.Reset()
			c.release()
			c.logger.Info("shard write succeeded after retries", "shard", req.ShardID, "attempts", attempt)
			c.finish(cl, resp, nil)
			return
		}
		if !core.IsRetryable(err) {
			c.release()
			c.finish(cl, nil, c.interrupted(err))
			return
		}
		c.logger.Debug("retry attempt failed", "shard", req.ShardID, "attempt", attempt, "error", err)
	}
}

// schedule runs a single attempt after the current delay.
func (c *Coordinator) schedule(ctx context.Context, req *core.ShardRequest, exec core.ShardExecutor, cl *call) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cl.deliver(nil, core.ErrCoordinatorClosed)
		return
	}
	d := c.delay.Next()
	id := c.nextID
	c.nextID++
	p := &pendingRetry{call: cl}
	c.pending[id] = p
	c.wg.Add(1)
	p.timer = time.AfterFunc(d, func() { c.runDeferred(ctx, id, req, exec) })
	c.mu.Unlock()

	c.metrics.RetryScheduled(string(c.node), Deferred.String())
	c.events.Emit(&core.RetryScheduled{
		Node:      c.node,
		ShardID:   req.ShardID,
		Delay:     d,
		Timestamp: time.Now(),
	})
	c.logger.Debug("retry scheduled", "shard", req.ShardID, "delay", d)
}

func (c *Coordinator) runDeferred(ctx context.Context, id uint64, req *core.ShardRequest, exec core.ShardExecutor) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		// Shutdown already failed this caller.
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := c.bind(ctx)
	defer cancel()

	if err := c.acquire(ctx); err != nil {
		c.finish(p.call, nil, c.interrupted(err))
		return
	}
	c.metrics.RetryAttempt(string(c.node))
	resp, err := exec.Execute(ctx, req)
	c.release()
	c.delay.Reset()
	if err != nil {
		c.finish(p.call, nil, c.interrupted(err))
		return
	}
	c.finish(p.call, resp, nil)
}

// Close stops accepting retries and waits up to the current delay plus the
// close grace for outstanding ones before shutting down.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	wait := c.delay.Current() + c.grace
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
		c.Shutdown()
		return nil
	case <-timer.C:
		n := c.Shutdown()
		c.logger.Warn("retry coordinator closed with outstanding retries", "waited", wait, "cancelled", n)
		return fmt.Errorf("%w: node %s", ErrCloseTimeout, c.node)
	}
}

// Shutdown cancels every running retry and fails every scheduled one with
// core.ErrCoordinatorClosed. It returns the number of scheduled retries
// that were failed.
func (c *Coordinator) Shutdown() int {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[uint64]*pendingRetry)
	c.mu.Unlock()

	c.cancel()
	for _, p := range pending {
		p.timer.Stop()
		c.finish(p.call, nil, core.ErrCoordinatorClosed)
		c.wg.Done()
	}
	return len(pending)
}

// Stats returns a snapshot of the coordinator.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	return Stats{
		ActiveWriters:  c.lock.ActiveWriters(),
		WaitingReaders: c.lock.WaitingReaders(),
		CurrentDelay:   c.delay.Current(),
		PendingRetries: pending,
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// bind derives a context cancelled by either ctx or the coordinator's
// lifetime.
func (c *Coordinator) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// interrupted marks errors caused by Shutdown as core.ErrCoordinatorClosed.
func (c *Coordinator) interrupted(err error) error {
	if c.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", core.ErrCoordinatorClosed, err)
	}
	return err
}

func (c *Coordinator) acquire(ctx context.Context) error {
	if err := c.lock.AcquireWrite(ctx); err != nil {
		return err
	}
	c.metrics.SetActiveWriters(string(c.node), c.lock.ActiveWriters())
	return nil
}

func (c *Coordinator) release() {
	c.lock.ReleaseWrite()
	c.metrics.SetActiveWriters(string(c.node), c.lock.ActiveWriters())
}

func (c *Coordinator) finish(cl *call, resp *core.ShardResponse, err error) {
	c.metrics.RetryFinished(string(c.node), err)
	cl.deliver(resp, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
