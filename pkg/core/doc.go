// Package core provides the fundamental types and interfaces for distexec.
//
// This package contains:
//   - Plan, Fragment and MergeFragment describing the work of one job
//   - Bucket, Row and Streamer for result rows and their wire encoding
//   - Transport, LocalExecutor and ShardExecutor collaborator interfaces
//   - JobEntry and OperationEntry models with GORM annotations for the job log
//   - Event types for dispatch monitoring
//   - Error types shared by the dispatch and retry paths
//
// Most users should import the root package github.com/jdziat/distexec
// instead of this package directly.
package core
