package storage

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the GORM dialect for a DSN. postgres:// and postgresql://
// URLs and key=value strings containing host= select PostgreSQL; anything
// else is treated as a SQLite path.
func Dialector(dsn string) gorm.Dialector {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open opens a database for dsn with GORM's own logging silenced and the
// connection pool configured. In-memory SQLite databases are pinned to one
// connection since every connection would otherwise see its own database.
func Open(dsn string, opts ...PoolOption) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("distexec: empty job log dsn")
	}
	db, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open job log database: %w", err)
	}
	if db.Dialector.Name() == "sqlite" && strings.Contains(dsn, ":memory:") {
		opts = append(opts, MaxOpenConns(1), MaxIdleConns(1), ConnMaxLifetime(0), ConnMaxIdleTime(0))
	}
	if err := ConfigurePool(db, opts...); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// OpenJobLog opens dsn, migrates the schema and returns the job log.
func OpenJobLog(ctx context.Context, dsn string, opts ...PoolOption) (*GormJobLog, error) {
	db, err := Open(dsn, opts...)
	if err != nil {
		return nil, err
	}
	jl := NewGormJobLog(db)
	if err := jl.Migrate(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate job log: %w", err)
	}
	return jl, nil
}
