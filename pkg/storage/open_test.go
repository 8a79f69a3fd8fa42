package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost:5432/db", "postgres"},
		{"postgresql://localhost/db", "postgres"},
		{"host=localhost user=crate dbname=jobs", "postgres"},
		{":memory:", "sqlite"},
		{"file:jobs.db?cache=shared", "sqlite"},
		{"/var/lib/distexec/jobs.db", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, Dialector(tt.dsn).Name())
		})
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpen_InMemoryPinsSingleConnection(t *testing.T) {
	db, err := Open(":memory:", MaxOpenConns(10))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenJobLog_Migrates(t *testing.T) {
	jl, err := OpenJobLog(context.Background(), ":memory:")
	require.NoError(t, err)

	assert.True(t, jl.DB().Migrator().HasTable("job_entries"))
	assert.True(t, jl.DB().Migrator().HasTable("operation_entries"))
}

func TestOpenJobLog_MigrateFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenJobLog(ctx, ":memory:")
	assert.Error(t, err)
}

func TestCloseDB(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)

	closeDB(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
