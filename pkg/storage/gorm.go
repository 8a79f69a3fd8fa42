package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/distexec/pkg/core"
	"github.com/jdziat/distexec/pkg/security"
)

// ErrEntryNotFound is returned when finishing a job or operation that was
// never logged.
var ErrEntryNotFound = errors.New("distexec: job log entry not found")

// GormJobLog implements core.JobLog using GORM.
type GormJobLog struct {
	db *gorm.DB
}

var _ core.JobLog = (*GormJobLog)(nil)

// NewGormJobLog creates a new GORM-backed job log.
func NewGormJobLog(db *gorm.DB) *GormJobLog {
	return &GormJobLog{db: db}
}

// DB returns the underlying database handle.
func (s *GormJobLog) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the log is backed by SQLite.
func (s *GormJobLog) IsSQLite() bool {
	return s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormJobLog) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.JobEntry{}, &core.OperationEntry{})
}

// JobStarted records a dispatched job.
func (s *GormJobLog) JobStarted(ctx context.Context, entry *core.JobEntry) error {
	if entry.Started.IsZero() {
		entry.Started = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// JobFinished marks a job finished. errMsg is sanitized before storage.
func (s *GormJobLog) JobFinished(ctx context.Context, jobID core.JobID, rowCount int, errMsg string) error {
	result := s.db.WithContext(ctx).
		Model(&core.JobEntry{}).
		Where("id = ? AND finished IS NULL", jobID.String()).
		Updates(map[string]any{
			"finished":  time.Now(),
			"row_count": rowCount,
			"error":     security.SanitizeErrorMessage(errMsg),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// OperationStarted records an operation of a job.
func (s *GormJobLog) OperationStarted(ctx context.Context, entry *core.OperationEntry) error {
	if entry.Started.IsZero() {
		entry.Started = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// OperationFinished marks an operation finished.
func (s *GormJobLog) OperationFinished(ctx context.Context, operationID string, errMsg string) error {
	result := s.db.WithContext(ctx).
		Model(&core.OperationEntry{}).
		Where("id = ? AND finished IS NULL", operationID).
		Updates(map[string]any{
			"finished": time.Now(),
			"error":    security.SanitizeErrorMessage(errMsg),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// GetJob retrieves a job entry by id, or nil if it was never logged.
func (s *GormJobLog) GetJob(ctx context.Context, jobID core.JobID) (*core.JobEntry, error) {
	var entry core.JobEntry
	err := s.db.WithContext(ctx).First(&entry, "id = ?", jobID.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &entry, err
}

// GetOperations retrieves the operations of a job, oldest first.
func (s *GormJobLog) GetOperations(ctx context.Context, jobID core.JobID) ([]*core.OperationEntry, error) {
	var ops []*core.OperationEntry
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID.String()).
		Order("started ASC").
		Find(&ops).Error
	return ops, err
}

// RunningJobs retrieves jobs that have not finished, oldest first.
func (s *GormJobLog) RunningJobs(ctx context.Context, limit int) ([]*core.JobEntry, error) {
	var entries []*core.JobEntry
	q := s.db.WithContext(ctx).
		Where("finished IS NULL").
		Order("started ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// PruneFinished deletes jobs, and their operations, that finished more than
// olderThan ago. It returns the number of deleted jobs.
func (s *GormJobLog) PruneFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var deleted int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&core.JobEntry{}).
			Where("finished IS NOT NULL AND finished < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("job_id IN ?", ids).Delete(&core.OperationEntry{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&core.JobEntry{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
