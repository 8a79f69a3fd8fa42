package dispatch

import "github.com/jdziat/distexec/pkg/core"

// GroupByNode partitions fragments by executing node. Nodes appear in the
// order they are first named and each node's fragments keep their input
// order. A fragment listing the same node twice is grouped once.
func GroupByNode(fragments []*core.Fragment) []core.NodeGroup {
	index := make(map[core.NodeID]int)
	var groups []core.NodeGroup
	for _, f := range fragments {
		if f == nil {
			continue
		}
		for _, node := range f.Nodes {
			i, ok := index[node]
			if !ok {
				i = len(groups)
				index[node] = i
				groups = append(groups, core.NodeGroup{Node: node})
			}
			g := &groups[i]
			if n := len(g.Fragments); n > 0 && g.Fragments[n-1] == f {
				continue
			}
			g.Fragments = append(g.Fragments, f)
		}
	}
	return groups
}

// HasDirectResponse reports whether any fragment feeds a consumer expecting
// its output embedded in the job response.
func HasDirectResponse(fragments []*core.Fragment) bool {
	for _, f := range fragments {
		if f != nil && f.HasDirectDownstream() {
			return true
		}
	}
	return false
}

// RetainedNodes returns, deduplicated and in first-appearance order, the
// nodes keeping an execution context open for later fetches.
func RetainedNodes(fragments []*core.Fragment) []core.NodeID {
	seen := make(map[core.NodeID]struct{})
	var nodes []core.NodeID
	for _, f := range fragments {
		if f == nil || !f.KeepContextForFetcher {
			continue
		}
		for _, node := range f.Nodes {
			if _, ok := seen[node]; ok {
				continue
			}
			seen[node] = struct{}{}
			nodes = append(nodes, node)
		}
	}
	return nodes
}
