package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan_DefaultsSourcesToLastFragment(t *testing.T) {
	collect := &Fragment{ID: 1, Nodes: []NodeID{"a", "b", "c"}}
	reduce := &Fragment{ID: 2, Nodes: []NodeID{"a", "b"}}
	merge := &MergeFragment{ID: 3}

	p := NewPlan(merge, collect, reduce)

	assert.Equal(t, 2, p.Merge.Sources)
	assert.False(t, p.JobID.IsZero())
	require.NoError(t, p.Validate())
}

func TestNewPlan_KeepsExplicitSources(t *testing.T) {
	merge := &MergeFragment{ID: 2, Sources: 5}
	p := NewPlan(merge, &Fragment{ID: 1, Nodes: []NodeID{"a"}})
	assert.Equal(t, 5, p.Merge.Sources)
}

func TestPlan_Validate(t *testing.T) {
	var nilPlan *Plan
	assert.ErrorIs(t, nilPlan.Validate(), ErrInvalidPlan)

	noMerge := &Plan{JobID: NewJobID()}
	assert.ErrorIs(t, noMerge.Validate(), ErrInvalidPlan)

	noID := &Plan{Merge: &MergeFragment{ID: 1}}
	assert.ErrorIs(t, noID.Validate(), ErrInvalidPlan)

	collision := NewPlan(&MergeFragment{ID: 1}, &Fragment{ID: 1, Nodes: []NodeID{"a"}})
	assert.ErrorIs(t, collision.Validate(), ErrInvalidPlan)

	nilFragment := NewPlan(&MergeFragment{ID: 1}, nil)
	assert.ErrorIs(t, nilFragment.Validate(), ErrInvalidPlan)
}

func TestFragment_HasDirectDownstream(t *testing.T) {
	paged := &Fragment{Downstreams: []Downstream{{FragmentID: 2}}}
	direct := &Fragment{Downstreams: []Downstream{{FragmentID: 2}, {FragmentID: 3, Direct: true}}}

	assert.False(t, paged.HasDirectDownstream())
	assert.True(t, direct.HasDirectDownstream())
}

func TestJobID_RoundTrip(t *testing.T) {
	id := NewJobID()
	parsed, err := ParseJobID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseJobID("not-a-uuid")
	assert.Error(t, err)
}

func TestNodeID_IsLocal(t *testing.T) {
	assert.True(t, LocalNodeID.IsLocal())
	assert.False(t, NodeID("n1").IsLocal())
}
