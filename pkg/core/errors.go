package core

import (
	"context"
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidPlan   = errors.New("distexec: invalid plan")
	ErrInvalidNodeID = errors.New("distexec: invalid node id")
	ErrNodeIDTooLong = errors.New("distexec: node id too long")
)

// Dispatch errors
var (
	ErrMissingDirectResponse    = errors.New("distexec: expected a direct response but didn't get one")
	ErrUnexpectedDirectResponse = errors.New("distexec: got a direct response but didn't expect one")
	ErrNoLocalExecutor          = errors.New("distexec: no local executor configured")
)

// Retry errors
var (
	ErrCoordinatorClosed = errors.New("distexec: retry coordinator closed")
)

func invalidPlan(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, reason)
}

// ProtocolError reports malformed or missing data from a peer. Protocol
// errors fail the job and are never retried.
type ProtocolError struct {
	Node NodeID
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from node %s: %v", e.Node, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps err as a ProtocolError attributed to node.
func NewProtocolError(node NodeID, err error) error {
	return &ProtocolError{Node: node, Err: err}
}

// TransportError reports a failure to reach a node.
type TransportError struct {
	Node NodeID
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on node %s: %v", e.Node, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a TransportError attributed to node.
func NewTransportError(node NodeID, err error) error {
	return &TransportError{Node: node, Err: err}
}

// NoRetryError indicates an error that should not be retried.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// IsProtocol reports whether err is a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsNoRetry reports whether err was marked with NoRetry.
func IsNoRetry(err error) bool {
	var nr *NoRetryError
	return errors.As(err, &nr)
}

// IsRetryable determines if a failed write attempt is worth retrying.
// Cancellation, shutdown, protocol errors and NoRetry errors are permanent;
// everything else is treated as a transient transport problem.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCoordinatorClosed) {
		return false
	}
	return !IsNoRetry(err) && !IsProtocol(err)
}
