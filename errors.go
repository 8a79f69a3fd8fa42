package distexec

import (
	"errors"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/downstream"
	"github.com/jdziat/distexec/pkg/registry"
	"github.com/jdziat/distexec/pkg/retry"
	"github.com/jdziat/distexec/pkg/storage"
)

// ErrNoShardExecutor is returned by writes when neither a shard executor was
// configured nor the transport can execute shard writes.
var ErrNoShardExecutor = errors.New("distexec: no shard executor configured")

// ErrNilTransport is returned by New when no transport is given.
var ErrNilTransport = errors.New("distexec: nil transport")

// Re-exported errors
var (
	ErrInvalidPlan              = core.ErrInvalidPlan
	ErrInvalidNodeID            = core.ErrInvalidNodeID
	ErrNodeIDTooLong            = core.ErrNodeIDTooLong
	ErrMissingDirectResponse    = core.ErrMissingDirectResponse
	ErrUnexpectedDirectResponse = core.ErrUnexpectedDirectResponse
	ErrNoLocalExecutor          = core.ErrNoLocalExecutor
	ErrCoordinatorClosed        = core.ErrCoordinatorClosed
	ErrCloseTimeout             = retry.ErrCloseTimeout
	ErrInvalidSlot              = downstream.ErrInvalidSlot
	ErrDuplicateSlot            = downstream.ErrDuplicateSlot
	ErrDownstreamClosed         = downstream.ErrClosed
	ErrJobLogEntryNotFound      = storage.ErrEntryNotFound
	ErrContextExists            = registry.ErrContextExists
	ErrContextNotFound          = registry.ErrContextNotFound
	ErrContextClosed            = registry.ErrContextClosed
	ErrContextExpired           = registry.ErrContextExpired
)

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return core.NoRetry(err)
}

// IsRetryable determines if a failed write attempt is worth retrying.
func IsRetryable(err error) bool {
	return core.IsRetryable(err)
}
