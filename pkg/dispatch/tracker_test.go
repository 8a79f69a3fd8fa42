package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_WaitIdle(t *testing.T) {
	var tr tracker
	assert.NoError(t, tr.wait(context.Background()))
}

func TestTracker_WaitDrains(t *testing.T) {
	var tr tracker
	tr.add(2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.wait(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- tr.wait(context.Background()) }()
	tr.done()
	tr.done()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return")
	}
}

func TestTracker_AddWhileWaiting(t *testing.T) {
	var tr tracker
	tr.add(1)
	done := make(chan error, 1)
	go func() { done <- tr.wait(context.Background()) }()

	tr.add(1)
	tr.done()
	tr.done()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return")
	}

	// A new round after draining starts from a fresh idle channel.
	tr.add(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.wait(ctx), context.DeadlineExceeded)
	tr.done()
	assert.NoError(t, tr.wait(context.Background()))
}
