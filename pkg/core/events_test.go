package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvents_ImplementEvent(t *testing.T) {
	events := []Event{
		&JobDispatched{JobID: NewJobID(), Nodes: []NodeID{"n1"}, Timestamp: time.Now()},
		&JobFinished{JobID: NewJobID(), RowCount: 3, Timestamp: time.Now()},
		&ContextCloseFailed{JobID: NewJobID(), Node: "n1", Error: errors.New("gone"), Timestamp: time.Now()},
		&RetryScheduled{Node: "n1", ShardID: 2, Delay: time.Second, Timestamp: time.Now()},
	}
	for _, e := range events {
		assert.NotNil(t, e)
	}
}
