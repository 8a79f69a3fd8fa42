package clusterstate

import (
	"log/slog"
	"sync"
)

// Modifier transforms the cluster state on DDL events. Implementations
// return the state unchanged for events they do not care about.
type Modifier interface {
	OnCloseTable(s State, table TableIdent) State
	OnOpenTable(s State, table TableIdent) State
	OnDropTable(s State, table TableIdent) State
	OnRenameTable(s State, source, target TableIdent, partitioned bool) State
	OnCloseTablePartition(s State, partition PartitionName) State
	OnOpenTablePartition(s State, partition PartitionName) State
}

// ModifierFuncs adapts plain functions to Modifier. Nil functions leave the
// state unchanged.
type ModifierFuncs struct {
	CloseTable          func(s State, table TableIdent) State
	OpenTable           func(s State, table TableIdent) State
	DropTable           func(s State, table TableIdent) State
	RenameTable         func(s State, source, target TableIdent, partitioned bool) State
	CloseTablePartition func(s State, partition PartitionName) State
	OpenTablePartition  func(s State, partition PartitionName) State
}

func (m ModifierFuncs) OnCloseTable(s State, table TableIdent) State {
	if m.CloseTable == nil {
		return s
	}
	return m.CloseTable(s, table)
}

func (m ModifierFuncs) OnOpenTable(s State, table TableIdent) State {
	if m.OpenTable == nil {
		return s
	}
	return m.OpenTable(s, table)
}

func (m ModifierFuncs) OnDropTable(s State, table TableIdent) State {
	if m.DropTable == nil {
		return s
	}
	return m.DropTable(s, table)
}

func (m ModifierFuncs) OnRenameTable(s State, source, target TableIdent, partitioned bool) State {
	if m.RenameTable == nil {
		return s
	}
	return m.RenameTable(s, source, target, partitioned)
}

func (m ModifierFuncs) OnCloseTablePartition(s State, partition PartitionName) State {
	if m.CloseTablePartition == nil {
		return s
	}
	return m.CloseTablePartition(s, partition)
}

func (m ModifierFuncs) OnOpenTablePartition(s State, partition PartitionName) State {
	if m.OpenTablePartition == nil {
		return s
	}
	return m.OpenTablePartition(s, partition)
}

// Service applies registered modifiers to DDL state changes.
type Service struct {
	mu        sync.RWMutex
	modifiers []Modifier
	logger    *slog.Logger
}

// NewService creates a service without modifiers. A nil logger uses
// slog.Default().
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// AddModifier registers m. Modifiers run in registration order.
func (s *Service) AddModifier(m Modifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifiers = append(s.modifiers, m)
}

// OnCloseTable applies every modifier to a table close.
func (s *Service) OnCloseTable(state State, table TableIdent) State {
	return s.apply("close_table", table.String(), state, func(m Modifier, cur State) State {
		return m.OnCloseTable(cur, table)
	})
}

// OnOpenTable applies every modifier to a table open.
func (s *Service) OnOpenTable(state State, table TableIdent) State {
	return s.apply("open_table", table.String(), state, func(m Modifier, cur State) State {
		return m.OnOpenTable(cur, table)
	})
}

// OnDropTable applies every modifier to a table drop.
func (s *Service) OnDropTable(state State, table TableIdent) State {
	return s.apply("drop_table", table.String(), state, func(m Modifier, cur State) State {
		return m.OnDropTable(cur, table)
	})
}

// OnRenameTable applies every modifier to a table rename.
func (s *Service) OnRenameTable(state State, source, target TableIdent, partitioned bool) State {
	return s.apply("rename_table", source.String(), state, func(m Modifier, cur State) State {
		return m.OnRenameTable(cur, source, target, partitioned)
	})
}

// OnCloseTablePartition applies every modifier to a partition close.
func (s *Service) OnCloseTablePartition(state State, partition PartitionName) State {
	return s.apply("close_partition", partition.String(), state, func(m Modifier, cur State) State {
		return m.OnCloseTablePartition(cur, partition)
	})
}

// OnOpenTablePartition applies every modifier to a partition open.
func (s *Service) OnOpenTablePartition(state State, partition PartitionName) State {
	return s.apply("open_partition", partition.String(), state, func(m Modifier, cur State) State {
		return m.OnOpenTablePartition(cur, partition)
	})
}

func (s *Service) apply(event, target string, state State, fn func(Modifier, State) State) State {
	s.mu.RLock()
	modifiers := make([]Modifier, len(s.modifiers))
	copy(modifiers, s.modifiers)
	s.mu.RUnlock()

	for _, m := range modifiers {
		state = fn(m, state)
	}
	s.logger.Debug("applied cluster state modifiers", "event", event, "target", target,
		"modifiers", len(modifiers), "version", state.Version)
	return state
}
