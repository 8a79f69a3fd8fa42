package core

import "time"

// Event is the interface for all dispatch events.
type Event interface {
	eventMarker()
}

// JobDispatched is emitted once a job's requests have been sent.
type JobDispatched struct {
	JobID      JobID
	Nodes      []NodeID
	DirectMode bool
	Timestamp  time.Time
}

func (*JobDispatched) eventMarker() {}

// JobFinished is emitted when a job's result future resolves.
type JobFinished struct {
	JobID     JobID
	RowCount  int
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobFinished) eventMarker() {}

// ContextCloseFailed is emitted when a remote context could not be closed.
type ContextCloseFailed struct {
	JobID     JobID
	Node      NodeID
	Error     error
	Timestamp time.Time
}

func (*ContextCloseFailed) eventMarker() {}

// RetryScheduled is emitted when a write is handed to a retry coordinator.
type RetryScheduled struct {
	Node      NodeID
	ShardID   int
	Delay     time.Duration
	Timestamp time.Time
}

func (*RetryScheduled) eventMarker() {}
