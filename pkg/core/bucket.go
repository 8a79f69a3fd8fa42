package core

// Row is one result row.
type Row []any

// Bucket is a finite ordered sequence of rows produced by one source.
type Bucket []Row

// Len returns the number of rows.
func (b Bucket) Len() int {
	return len(b)
}

// TaskResult is the final, merged outcome of a job.
type TaskResult struct {
	Rows Bucket
}

// RowCount returns the number of rows in the result.
func (r TaskResult) RowCount() int {
	return len(r.Rows)
}
