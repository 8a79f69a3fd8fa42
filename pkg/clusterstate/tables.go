package clusterstate

// Tables is a Modifier keeping State.Tables in sync with DDL events.
// Register it first so later modifiers see the updated tables.
type Tables struct{}

var _ Modifier = Tables{}

func (Tables) OnCloseTable(s State, table TableIdent) State {
	t, ok := s.Table(table)
	if !ok || t.Closed {
		return s
	}
	t.Closed = true
	return s.WithTable(t)
}

func (Tables) OnOpenTable(s State, table TableIdent) State {
	t, ok := s.Table(table)
	if !ok || !t.Closed {
		return s
	}
	t.Closed = false
	return s.WithTable(t)
}

func (Tables) OnDropTable(s State, table TableIdent) State {
	if _, ok := s.Table(table); !ok {
		return s
	}
	out := s.Clone()
	delete(out.Tables, table.FQN())
	out.Version++
	return out
}

func (Tables) OnRenameTable(s State, source, target TableIdent, partitioned bool) State {
	t, ok := s.Table(source)
	if !ok {
		return s
	}
	out := s.Clone()
	delete(out.Tables, source.FQN())
	t.Ident = target
	t.Partitioned = partitioned
	out.Tables[target.FQN()] = t
	out.Version++
	return out
}

func (Tables) OnCloseTablePartition(s State, partition PartitionName) State {
	return setPartitionClosed(s, partition, true)
}

func (Tables) OnOpenTablePartition(s State, partition PartitionName) State {
	return setPartitionClosed(s, partition, false)
}

func setPartitionClosed(s State, partition PartitionName, closed bool) State {
	t, ok := s.Table(partition.Table)
	if !ok || !t.Partitioned || t.ClosedPartitions[partition.Ident] == closed {
		return s
	}
	out := s.Clone()
	t = out.Tables[partition.Table.FQN()]
	if t.ClosedPartitions == nil {
		t.ClosedPartitions = make(map[string]bool)
	}
	if closed {
		t.ClosedPartitions[partition.Ident] = true
	} else {
		delete(t.ClosedPartitions, partition.Ident)
	}
	out.Tables[partition.Table.FQN()] = t
	out.Version++
	return out
}
