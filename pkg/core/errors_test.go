package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoRetryError(t *testing.T) {
	originalErr := errors.New("permanent failure")
	wrapped := NoRetry(originalErr)

	var noRetryErr *NoRetryError
	assert.True(t, errors.As(wrapped, &noRetryErr))
	assert.Equal(t, originalErr, noRetryErr.Unwrap())
	assert.Contains(t, noRetryErr.Error(), "no retry")
	assert.Contains(t, noRetryErr.Error(), "permanent failure")
}

func TestProtocolError(t *testing.T) {
	err := NewProtocolError("n1", ErrMissingDirectResponse)

	assert.True(t, IsProtocol(err))
	assert.False(t, IsTransport(err))
	assert.ErrorIs(t, err, ErrMissingDirectResponse)
	assert.Contains(t, err.Error(), "n1")
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("execute: %w", NewTransportError("n2", cause))

	assert.True(t, IsTransport(err))
	assert.False(t, IsProtocol(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "n2")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(ErrCoordinatorClosed))
	assert.False(t, IsRetryable(NoRetry(errors.New("bad mapping"))))
	assert.False(t, IsRetryable(NewProtocolError("n1", errors.New("garbage"))))

	assert.True(t, IsRetryable(errors.New("queue full")))
	assert.True(t, IsRetryable(NewTransportError("n1", errors.New("timeout"))))
}

func TestErrorVariables(t *testing.T) {
	assert.Contains(t, ErrInvalidPlan.Error(), "invalid plan")
	assert.Contains(t, ErrMissingDirectResponse.Error(), "expected a direct response")
	assert.Contains(t, ErrUnexpectedDirectResponse.Error(), "didn't expect")
	assert.Contains(t, ErrCoordinatorClosed.Error(), "closed")
}
