package core

// Downstream describes a consumer of a fragment's output.
type Downstream struct {
	FragmentID int
	// Direct is set when the consumer expects the output embedded in the
	// job response instead of fetching it page by page.
	Direct bool
}

// Fragment is a unit of a distributed plan assigned to one or more nodes.
// Fragments must not be modified after they are handed to a dispatcher.
type Fragment struct {
	ID          int
	Name        string
	Nodes       []NodeID
	Downstreams []Downstream

	// KeepContextForFetcher keeps the remote execution context open after the
	// fragment ran so later fetches can be served from it. The dispatcher
	// closes those contexts once the job completes.
	KeepContextForFetcher bool

	// Payload is the planner's opaque encoding of the fragment.
	Payload []byte
}

// HasDirectDownstream reports whether any consumer of the fragment expects a
// direct response.
func (f *Fragment) HasDirectDownstream() bool {
	for _, d := range f.Downstreams {
		if d.Direct {
			return true
		}
	}
	return false
}

// MergeFragment is the terminal fragment combining per-source buckets into
// the job result.
type MergeFragment struct {
	ID         int
	InputTypes []DataType

	// Sources is the number of upstream buckets the merge waits for.
	Sources int

	// OrderBy lists column indexes the upstream buckets are sorted by. When
	// set the buckets are merged preserving that order instead of being
	// concatenated.
	OrderBy []int
}

// Plan is the set of fragments executed for one job.
type Plan struct {
	JobID     JobID
	Fragments []*Fragment
	Merge     *MergeFragment

	// Stmt and Username are only used for job accounting.
	Stmt     string
	Username string
}

// NewPlan builds a plan for a new job. When merge.Sources is unset it
// defaults to the node count of the last fragment.
func NewPlan(merge *MergeFragment, fragments ...*Fragment) *Plan {
	if merge != nil && merge.Sources == 0 && len(fragments) > 0 {
		merge.Sources = len(fragments[len(fragments)-1].Nodes)
	}
	return &Plan{
		JobID:     NewJobID(),
		Fragments: fragments,
		Merge:     merge,
	}
}

// Validate checks the plan is dispatchable.
func (p *Plan) Validate() error {
	if p == nil {
		return ErrInvalidPlan
	}
	if p.JobID.IsZero() {
		return invalidPlan("missing job id")
	}
	if p.Merge == nil {
		return invalidPlan("missing merge fragment")
	}
	if p.Merge.Sources < 0 {
		return invalidPlan("negative source count")
	}
	for _, f := range p.Fragments {
		if f == nil {
			return invalidPlan("nil fragment")
		}
		if f.ID == p.Merge.ID {
			return invalidPlan("fragment id collides with merge fragment")
		}
	}
	return nil
}

// NodeGroup is the list of fragments one node has to execute for a job.
type NodeGroup struct {
	Node      NodeID
	Fragments []*Fragment
}
