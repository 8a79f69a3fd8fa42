// Package security provides validation, sanitization, and limits for distexec.
//
// This package includes:
//   - Input validation for node ids
//   - Error message sanitization before errors are written to the job log
//   - Clamping functions to enforce safe limits on retry delays and timeouts
package security
