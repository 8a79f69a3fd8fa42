// Package schedule provides schedules for recurring background work such as
// sweeping stale job contexts.
//
// This package includes:
//   - Schedule interface
//   - Every() for fixed-interval schedules
//   - Cron() and ParseCron() for cron expression-based schedules
package schedule
