package dispatch

import (
	"context"
	"sync"
)

// tracker counts outstanding background work. Unlike sync.WaitGroup it
// may be incremented while another goroutine waits for it to drain.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n += n
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		panic("dispatch: tracker done without add")
	}
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

// wait blocks until the count drops to zero or ctx is done.
func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
