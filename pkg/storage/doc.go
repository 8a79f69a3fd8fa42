// Package storage provides job log implementations.
//
// This package includes:
//   - GormJobLog: A GORM-based core.JobLog supporting SQLite and PostgreSQL
//   - Open: opens a database for a DSN, picking the dialect from its scheme
//   - Connection pool configuration helpers
//
// The JobLog interface is defined in pkg/core.
package storage
