// Package future provides a single-assignment completion cell.
package future

import (
	"context"
	"sync"
)

type state int

const (
	pending state = iota
	resolved
	failed
)

// Future resolves to a value or an error exactly once. Callbacks may be
// attached at any time; those attached before resolution run once, in
// registration order, on the goroutine that resolves the future.
type Future[T any] struct {
	mu        sync.Mutex
	state     state
	value     T
	err       error
	callbacks []func(T, error)
	done      chan struct{}
}

// New returns a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Set resolves the future with v. It returns false if the future was
// already resolved.
func (f *Future[T]) Set(v T) bool {
	return f.complete(v, nil)
}

// Fail resolves the future with err. It returns false if the future was
// already resolved.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.state != pending {
		f.mu.Unlock()
		return false
	}
	if err != nil {
		f.state = failed
	} else {
		f.state = resolved
	}
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// OnComplete registers cb. If the future is already resolved cb runs
// immediately on the calling goroutine.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if f.state == pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Done is closed once the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome and whether the future has resolved.
func (f *Future[T]) Result() (T, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.state != pending
}

// Wait blocks until the future resolves or ctx is done. Cancelling ctx does
// not affect the future.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
