package retry

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var openGate = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Lock is a writer-priority lock allowing many readers and one active
// writer. Readers never block each other. The first writer closes the
// reader gate and the last writer to release reopens it, admitting every
// waiting reader at once. Unlike sync.RWMutex, readers do not hold the lock
// after AcquireRead returns and no lock is owned by a goroutine.
type Lock struct {
	write   *semaphore.Weighted
	writers atomic.Int32
	waiting atomic.Int32

	mu   sync.Mutex
	gate chan struct{}
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock {
	return &Lock{
		write: semaphore.NewWeighted(1),
		gate:  openGate,
	}
}

// AcquireWrite blocks until the caller is the only active writer or ctx is
// done. Readers arriving after AcquireWrite is called block until every
// writer has released.
func (l *Lock) AcquireWrite(ctx context.Context) error {
	l.register()
	if err := l.write.Acquire(ctx, 1); err != nil {
		l.unregister()
		return err
	}
	return nil
}

// ReleaseWrite releases a lock taken with AcquireWrite. Calling it without
// holding the write lock panics.
func (l *Lock) ReleaseWrite() {
	l.unregister()
	l.write.Release(1)
}

// AcquireRead returns immediately when no writer is registered and
// otherwise waits until the last writer releases or ctx is done.
func (l *Lock) AcquireRead(ctx context.Context) error {
	if l.writers.Load() == 0 {
		return nil
	}
	l.mu.Lock()
	gate := l.gate
	l.mu.Unlock()

	select {
	case <-gate:
		return nil
	default:
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveWriters returns the number of writers holding or waiting for the
// write lock.
func (l *Lock) ActiveWriters() int {
	return int(l.writers.Load())
}

// WaitingReaders returns the number of readers blocked on the gate.
func (l *Lock) WaitingReaders() int {
	return int(l.waiting.Load())
}

func (l *Lock) register() {
	l.mu.Lock()
	if l.writers.Add(1) == 1 {
		l.gate = make(chan struct{})
	}
	l.mu.Unlock()
}

func (l *Lock) unregister() {
	l.mu.Lock()
	if l.writers.Add(-1) == 0 {
		close(l.gate)
	}
	l.mu.Unlock()
}
