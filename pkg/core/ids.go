package core

import (
	"github.com/google/uuid"
)

// NodeID identifies a cluster node.
type NodeID string

// LocalNodeID is the reserved node id for fragments that run in-process
// instead of over the wire.
const LocalNodeID NodeID = "_local"

// IsLocal reports whether the node id is the local sentinel.
func (n NodeID) IsLocal() bool {
	return n == LocalNodeID
}

func (n NodeID) String() string {
	return string(n)
}

// JobID is the globally unique identifier of a job.
type JobID uuid.UUID

// NewJobID returns a random job id.
func NewJobID() JobID {
	return JobID(uuid.New())
}

// ParseJobID parses the canonical string form of a job id.
func ParseJobID(s string) (JobID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, err
	}
	return JobID(id), nil
}

func (id JobID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the id was never assigned.
func (id JobID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}
