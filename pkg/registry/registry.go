// Package registry keeps the process-wide mapping from (job, fragment) to
// the page downstream context collecting that fragment's pages.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/downstream"
	"github.com/jdziat/distexec/pkg/schedule"
)

var (
	ErrContextExists   = errors.New("distexec: job context already registered")
	ErrContextNotFound = errors.New("distexec: job context not found")
	ErrContextClosed   = errors.New("distexec: job context closed")
	ErrContextExpired  = errors.New("distexec: job context expired")
)

// Key identifies a registered context.
type Key struct {
	JobID      core.JobID
	FragmentID int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.JobID, k.FragmentID)
}

type entry struct {
	ctx        *downstream.Context
	registered time.Time
}

// Registry maps (job, fragment) to page downstream contexts. Entries are
// removed automatically when their context completes or fails.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*entry
	logger  *slog.Logger
	now     func() time.Time

	sweepMu   sync.Mutex
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// Option configures a Registry.
type Option interface {
	apply(*Registry)
}

type optionFunc func(*Registry)

func (f optionFunc) apply(r *Registry) { f(r) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	})
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[Key]*entry),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// Register adds ctx under (jobID, fragmentID).
func (r *Registry) Register(jobID core.JobID, fragmentID int, ctx *downstream.Context) error {
	key := Key{JobID: jobID, FragmentID: fragmentID}
	e := &entry{ctx: ctx, registered: r.now()}

	r.mu.Lock()
	if _, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContextExists, key)
	}
	r.entries[key] = e
	r.mu.Unlock()

	ctx.OnClose(func() { r.remove(key, e) })
	return nil
}

// remove deletes key only if it still maps to e.
func (r *Registry) remove(key Key, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[key]; ok && cur == e {
		delete(r.entries, key)
	}
}

// Lookup returns the context registered under (jobID, fragmentID).
func (r *Registry) Lookup(jobID core.JobID, fragmentID int) (*downstream.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[Key{JobID: jobID, FragmentID: fragmentID}]
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

// SetBucket forwards a fetched page to the registered context. A page for
// an invalid or already filled slot fails the context before the error is
// returned.
func (r *Registry) SetBucket(jobID core.JobID, fragmentID, slot int, b core.Bucket, isLast bool, l downstream.PageConsumeListener) error {
	ctx, ok := r.Lookup(jobID, fragmentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrContextNotFound, Key{JobID: jobID, FragmentID: fragmentID})
	}
	err := ctx.SetBucket(slot, b, isLast, l)
	if errors.Is(err, downstream.ErrInvalidSlot) || errors.Is(err, downstream.ErrDuplicateSlot) {
		ctx.Failure(err)
	}
	return err
}

// Fail fails the context registered under (jobID, fragmentID), if any.
func (r *Registry) Fail(jobID core.JobID, fragmentID int, err error) bool {
	ctx, ok := r.Lookup(jobID, fragmentID)
	if !ok {
		return false
	}
	ctx.Failure(err)
	return true
}

// Close fails and removes every context of a job. It returns how many
// contexts were closed.
func (r *Registry) Close(jobID core.JobID) int {
	r.mu.Lock()
	var closing []*downstream.Context
	for key, e := range r.entries {
		if key.JobID == jobID {
			closing = append(closing, e.ctx)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, ctx := range closing {
		ctx.Failure(ErrContextClosed)
	}
	return len(closing)
}

// Len returns the number of registered contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep fails and removes contexts registered longer than ttl ago.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []Key
	var contexts []*downstream.Context
	for key, e := range r.entries {
		if e.registered.Before(cutoff) {
			expired = append(expired, key)
			contexts = append(contexts, e.ctx)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for i, ctx := range contexts {
		r.logger.Warn("expiring stale job context", "key", expired[i].String(), "ttl", ttl)
		ctx.Failure(fmt.Errorf("%w after %s", ErrContextExpired, ttl))
	}
	return len(contexts)
}

// StartSweeper runs Sweep(ttl) on the given schedule until StopSweeper is
// called. Starting a second sweeper replaces the first.
func (r *Registry) StartSweeper(s schedule.Schedule, ttl time.Duration) {
	r.StopSweeper()

	stop := make(chan struct{})
	done := make(chan struct{})
	r.sweepMu.Lock()
	r.stopSweep, r.sweepDone = stop, done
	r.sweepMu.Unlock()

	go func() {
		defer close(done)
		next := s.Next(r.now())
		for {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
			if n := r.Sweep(ttl); n > 0 {
				r.logger.Info("swept stale job contexts", "count", n)
			}
			next = s.Next(r.now())
		}
	}()
}

// StopSweeper stops a running sweeper and waits for it to exit.
func (r *Registry) StopSweeper() {
	r.sweepMu.Lock()
	stop, done := r.stopSweep, r.sweepDone
	r.stopSweep, r.sweepDone = nil, nil
	r.sweepMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
