package clusterstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var users = TableIdent{Schema: "doc", Name: "users"}

func baseState() State {
	return NewState().WithTable(Table{Ident: users})
}

func TestService_NoModifiersReturnsStateUnchanged(t *testing.T) {
	s := NewService(nil)
	state := baseState()
	assert.Equal(t, state, s.OnCloseTable(state, users))
}

func TestService_AppliesModifiersInRegistrationOrder(t *testing.T) {
	s := NewService(nil)
	var order []string
	tag := func(name string) Modifier {
		return ModifierFuncs{CloseTable: func(st State, table TableIdent) State {
			order = append(order, name)
			out := st.Clone()
			out.Custom["last"] = name
			out.Custom[name] = st.Custom["last"]
			return out
		}}
	}
	s.AddModifier(tag("first"))
	s.AddModifier(tag("second"))
	s.AddModifier(tag("third"))

	out := s.OnCloseTable(baseState(), users)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, "third", out.Custom["last"])
	assert.Equal(t, "first", out.Custom["second"], "each modifier sees the previous one's state")
	assert.Equal(t, "second", out.Custom["third"])
}

func TestService_ModifierFuncsIgnoreUnsetEvents(t *testing.T) {
	s := NewService(nil)
	s.AddModifier(ModifierFuncs{})

	state := baseState()
	part := PartitionName{Table: users, Ident: "04732cpp6ks3ed1o60o30c1g"}
	assert.Equal(t, state, s.OnOpenTable(state, users))
	assert.Equal(t, state, s.OnDropTable(state, users))
	assert.Equal(t, state, s.OnRenameTable(state, users, TableIdent{Name: "x"}, false))
	assert.Equal(t, state, s.OnCloseTablePartition(state, part))
	assert.Equal(t, state, s.OnOpenTablePartition(state, part))
}

func TestTables_CloseAndOpen(t *testing.T) {
	s := NewService(nil)
	s.AddModifier(Tables{})

	base := baseState()
	closed := s.OnCloseTable(base, users)
	tbl, ok := closed.Table(users)
	require.True(t, ok)
	assert.True(t, tbl.Closed)
	assert.Greater(t, closed.Version, base.Version)

	orig, _ := base.Table(users)
	assert.False(t, orig.Closed, "input state is not mutated")

	opened := s.OnOpenTable(closed, users)
	tbl, _ = opened.Table(users)
	assert.False(t, tbl.Closed)
}

func TestTables_DropAndRename(t *testing.T) {
	s := NewService(nil)
	s.AddModifier(Tables{})

	target := TableIdent{Schema: "doc", Name: "people"}
	renamed := s.OnRenameTable(baseState(), users, target, true)
	_, ok := renamed.Table(users)
	assert.False(t, ok)
	tbl, ok := renamed.Table(target)
	require.True(t, ok)
	assert.Equal(t, target, tbl.Ident)
	assert.True(t, tbl.Partitioned)
	assert.Equal(t, []string{"people"}, renamed.TablesInSchema("doc"))

	dropped := s.OnDropTable(renamed, target)
	assert.Empty(t, dropped.Tables)

	unknown := TableIdent{Name: "missing"}
	assert.Equal(t, dropped, s.OnDropTable(dropped, unknown))
}

func TestTables_Partitions(t *testing.T) {
	s := NewService(nil)
	s.AddModifier(Tables{})

	state := NewState().WithTable(Table{Ident: users, Partitioned: true})
	part := PartitionName{Table: users, Ident: "p1"}

	closed := s.OnCloseTablePartition(state, part)
	tbl, _ := closed.Table(users)
	assert.True(t, tbl.ClosedPartitions["p1"])

	before, _ := state.Table(users)
	assert.Empty(t, before.ClosedPartitions)

	opened := s.OnOpenTablePartition(closed, part)
	tbl, _ = opened.Table(users)
	assert.False(t, tbl.ClosedPartitions["p1"])

	// Partitions of unpartitioned tables are ignored.
	plain := baseState()
	assert.Equal(t, plain, s.OnCloseTablePartition(plain, part))
}

func TestIdentStrings(t *testing.T) {
	assert.Equal(t, "doc.users", users.String())
	assert.Equal(t, "doc.t", TableIdent{Name: "t"}.FQN())
	assert.Equal(t, "doc.users[p1]", PartitionName{Table: users, Ident: "p1"}.String())
}
