package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 8
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of connections in the idle pool.
	// Default: 4
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Default: 1 minute
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultPoolConfig returns defaults for the job log connection pool.
// Job log writes happen from completion callbacks, so a handful of
// connections is plenty:
//   - MaxOpenConns: 8
//   - MaxIdleConns: 4
//   - ConnMaxLifetime: 5min
//   - ConnMaxIdleTime: 1min
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns sets the maximum number of open connections.
// Set to 0 for unlimited (not recommended for production).
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
// Should be less than or equal to MaxOpenConns.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
// Connections older than this are closed and replaced.
// Set to 0 for no limit (not recommended).
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime sets the maximum idle time for connections.
// Idle connections older than this are closed.
// Set to 0 for no limit.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ConfigurePool applies pool configuration to a GORM database connection.
// Returns an error if the underlying *sql.DB cannot be retrieved.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	config := DefaultPoolConfig()
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// NewGormJobLogWithPool creates a new GORM-backed job log with connection pooling configured.
// Uses DefaultPoolConfig() values, which can be overridden with PoolOption arguments.
//
// Example:
//
//	jobLog, err := NewGormJobLogWithPool(db,
//	    MaxOpenConns(50),
//	    MaxIdleConns(20),
//	)
func NewGormJobLogWithPool(db *gorm.DB, opts ...PoolOption) (*GormJobLog, error) {
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	return NewGormJobLog(db), nil
}

// WithPoolConfig applies every field of cfg.
func WithPoolConfig(cfg PoolConfig) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		*c = cfg
	})
}
