package downstream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/distexec/pkg/core"
)

var (
	ErrInvalidSlot   = errors.New("distexec: invalid bucket slot")
	ErrDuplicateSlot = errors.New("distexec: bucket slot already filled")
	ErrClosed        = errors.New("distexec: page downstream context already closed")
)

// Option configures a Context.
type Option interface {
	apply(*Context)
}

type optionFunc func(*Context)

func (f optionFunc) apply(c *Context) { f(c) }

// WithMerger replaces the default Concat merge.
func WithMerger(m Merger) Option {
	return optionFunc(func(c *Context) {
		if m != nil {
			c.merger = m
		}
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Context) {
		if l != nil {
			c.logger = l
		}
	})
}

// Context collects one bucket per source slot and drives its consumer once
// all slots are filled or a source failed. It is safe for concurrent use.
type Context struct {
	consumer  Consumer
	streamers []core.Streamer
	merger    Merger
	logger    *slog.Logger
	created   time.Time

	mu         sync.Mutex
	buckets    []core.Bucket
	filled     []bool
	remaining  int
	done       bool
	err        error
	closed     bool
	closeHooks []func()
}

// New creates a Context waiting for sources buckets.
func New(consumer Consumer, streamers []core.Streamer, sources int, opts ...Option) *Context {
	if sources < 0 {
		sources = 0
	}
	c := &Context{
		consumer:  consumer,
		streamers: streamers,
		merger:    Concat,
		logger:    slog.Default(),
		created:   time.Now(),
		buckets:   make([]core.Bucket, sources),
		filled:    make([]bool, sources),
		remaining: sources,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// Streamers returns the row encoding of the merged buckets.
func (c *Context) Streamers() []core.Streamer {
	return c.streamers
}

// Sources returns the number of expected buckets.
func (c *Context) Sources() int {
	return len(c.filled)
}

// Created returns when the context was built.
func (c *Context) Created() time.Time {
	return c.created
}

// SetBucket records a page of the bucket for slot. isLast marks the final
// page of that source. After the page is recorded l is told whether more
// pages are wanted; once every slot got its last page the merged result is
// handed to the consumer.
func (c *Context) SetBucket(slot int, b core.Bucket, isLast bool, l PageConsumeListener) error {
	if l == nil {
		l = noopListener{}
	}

	c.mu.Lock()
	if slot < 0 || slot >= len(c.filled) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidSlot, slot, len(c.filled))
	}
	if c.filled[slot] {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateSlot, slot)
	}
	if c.done {
		c.mu.Unlock()
		return ErrClosed
	}

	c.buckets[slot] = append(c.buckets[slot], b...)
	if !isLast {
		c.mu.Unlock()
		l.NeedMore()
		return nil
	}

	c.filled[slot] = true
	c.remaining--
	complete := c.remaining == 0
	if complete {
		c.done = true
	}
	c.mu.Unlock()

	l.Finish()
	if complete {
		c.deliver(c.merger(c.buckets), nil)
	}
	return nil
}

// Failure fails the context. Only the first failure is delivered; failures
// after completion are ignored.
func (c *Context) Failure(err error) {
	if err == nil {
		err = errors.New("distexec: unknown failure")
	}
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		c.logger.Debug("ignoring failure of closed downstream context", "error", err)
		return
	}
	c.done = true
	c.err = err
	c.mu.Unlock()

	c.deliver(nil, err)
}

// Finish completes the context with whatever has been received so far. It is
// used when no source is expected at all.
func (c *Context) Finish() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	c.mu.Unlock()

	c.deliver(c.merger(c.buckets), nil)
}

// Done reports whether the consumer has been invoked.
func (c *Context) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the failure delivered to the consumer, if any.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnClose registers fn to run once the context completed or failed. If it
// already did, fn runs immediately.
func (c *Context) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.closeHooks = append(c.closeHooks, fn)
	c.mu.Unlock()
}

// deliver runs exactly once, after done was set by the caller.
func (c *Context) deliver(b core.Bucket, err error) {
	if err != nil {
		c.consumer.Fail(err)
	} else {
		c.consumer.Finish(b)
	}

	c.mu.Lock()
	hooks := c.closeHooks
	c.closeHooks = nil
	c.closed = true
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
