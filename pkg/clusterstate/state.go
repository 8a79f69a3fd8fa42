// Package clusterstate lets components hook into cluster state changes
// caused by DDL statements. Modifiers are applied in registration order,
// each receiving the state produced by the previous one.
package clusterstate

import (
	"maps"
	"strings"
)

// TableIdent names a table.
type TableIdent struct {
	Schema string
	Name   string
}

// FQN returns the fully qualified table name.
func (t TableIdent) FQN() string {
	if t.Schema == "" {
		return "doc." + t.Name
	}
	return t.Schema + "." + t.Name
}

func (t TableIdent) String() string {
	return t.FQN()
}

// PartitionName names one partition of a partitioned table.
type PartitionName struct {
	Table TableIdent
	Ident string
}

func (p PartitionName) String() string {
	return p.Table.FQN() + "[" + p.Ident + "]"
}

// Table is the cluster-level metadata of one table.
type Table struct {
	Ident       TableIdent
	Closed      bool
	Partitioned bool
	// ClosedPartitions holds the idents of closed partitions.
	ClosedPartitions map[string]bool
}

// State is a snapshot of the cluster metadata. Modifiers must treat a State
// as immutable and return a modified copy.
type State struct {
	Version int64
	Tables  map[string]Table
	// Custom holds metadata owned by modifiers, keyed by modifier-chosen
	// names.
	Custom map[string]string
}

// NewState returns an empty state.
func NewState() State {
	return State{
		Tables: make(map[string]Table),
		Custom: make(map[string]string),
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Version: s.Version,
		Tables:  make(map[string]Table, len(s.Tables)),
		Custom:  maps.Clone(s.Custom),
	}
	if out.Custom == nil {
		out.Custom = make(map[string]string)
	}
	for k, t := range s.Tables {
		t.ClosedPartitions = maps.Clone(t.ClosedPartitions)
		out.Tables[k] = t
	}
	return out
}

// Table returns the table named by ident.
func (s State) Table(ident TableIdent) (Table, bool) {
	t, ok := s.Tables[ident.FQN()]
	return t, ok
}

// WithTable returns a copy of s containing t.
func (s State) WithTable(t Table) State {
	out := s.Clone()
	out.Tables[t.Ident.FQN()] = t
	out.Version++
	return out
}

// TablesInSchema returns the names of the tables of schema.
func (s State) TablesInSchema(schema string) []string {
	var names []string
	prefix := schema + "."
	for fqn := range s.Tables {
		if strings.HasPrefix(fqn, prefix) {
			names = append(names, strings.TrimPrefix(fqn, prefix))
		}
	}
	return names
}
