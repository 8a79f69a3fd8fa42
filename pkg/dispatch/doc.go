// Package dispatch sends the fragments of a job to the nodes executing
// them and merges their results into a single job result.
//
// A job is dispatched in one of two modes:
//   - direct: every node answers with its bucket embedded in the job
//     response and the buckets are merged locally in node order;
//   - paged: nodes only acknowledge the request and push pages later through
//     the job context registry.
//
// The first failure resolves the job. Remote contexts kept for later fetches
// are closed once the job is resolved, whatever the outcome.
package dispatch
