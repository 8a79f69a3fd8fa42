// Package retry serializes retried shard writes per target node.
//
// A Coordinator owns a writer-priority Lock and an escalating Delay for one
// node. Ordinary writes pass through the lock's reader gate; retries take
// the write side, so while a retry is in flight no new ordinary write for
// that node starts and retries never overlap.
//
// Two retry modes exist:
//   - Blocking retries run on the caller's goroutine and loop until the
//     write succeeds, fails permanently, or ctx is cancelled.
//   - Deferred retries are scheduled on a timer and attempt the write
//     exactly once when it fires.
//
// A Pool holds one Coordinator per node.
package retry
