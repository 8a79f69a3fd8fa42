package core

import (
	"context"
	"time"
)

// JobEntry is one row of the job log: a job that was dispatched from this
// node.
type JobEntry struct {
	ID         string     `gorm:"primaryKey;size:36"`
	Username   string     `gorm:"size:255"`
	Stmt       string     `gorm:"type:text"`
	Started    time.Time  `gorm:"index;not null"`
	Finished   *time.Time `gorm:"index"`
	Error      string     `gorm:"type:text"`
	RowCount   int        `gorm:"default:0"`
	NodeCount  int        `gorm:"default:0"`
	DirectMode bool       `gorm:"default:false"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

// OperationEntry tracks a single operation of a job, such as the local merge.
type OperationEntry struct {
	ID        string     `gorm:"primaryKey;size:36"`
	JobID     string     `gorm:"index;size:36;not null"`
	Name      string     `gorm:"size:255;not null"`
	Started   time.Time  `gorm:"not null"`
	Finished  *time.Time
	Error     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Running reports whether the entry has not finished yet.
func (e *JobEntry) Running() bool {
	return e.Finished == nil
}

// JobLog records job and operation accounting.
type JobLog interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	JobStarted(ctx context.Context, entry *JobEntry) error
	JobFinished(ctx context.Context, jobID JobID, rowCount int, errMsg string) error
	OperationStarted(ctx context.Context, entry *OperationEntry) error
	OperationFinished(ctx context.Context, operationID string, errMsg string) error

	GetJob(ctx context.Context, jobID JobID) (*JobEntry, error)
	GetOperations(ctx context.Context, jobID JobID) ([]*OperationEntry, error)
	RunningJobs(ctx context.Context, limit int) ([]*JobEntry, error)
	PruneFinished(ctx context.Context, olderThan time.Duration) (int64, error)
}
