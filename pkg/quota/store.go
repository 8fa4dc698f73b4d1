package quota

import (
	"sync"
	"time"
)

// State holds one user's quota counters. Events carries the rolling-window
// timestamps; the month fields carry the calendar counter. FirstEvent is
// the first admitted request of the current month and rebases whenever
// the month key changes.
type State struct {
	Events     []time.Time
	MonthKey   string
	MonthCount int
	FirstEvent time.Time
}

// Store is the state backend for the guard. Update must apply fn atomically
// with respect to other calls for the same user, so that two concurrent
// requests from one user cannot both pass a full gate.
type Store interface {
	// Get returns a copy of the user's state
	Get(userID int64) State
	// Update applies fn to the user's state and persists the result,
	// returning the new state
	Update(userID int64, fn func(State) State) State
}

// MemoryStore is the default in-process store. Quota state is deliberately
// not durable across restarts; callers that need durability can supply
// their own Store.
type MemoryStore struct {
	mu     sync.Mutex
	states map[int64]State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[int64]State),
	}
}

// Get returns a copy of the user's state
func (m *MemoryStore) Get(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copyState(m.states[userID])
}

// Update applies fn to the user's state under the store lock
func (m *MemoryStore) Update(userID int64, fn func(State) State) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := fn(copyState(m.states[userID]))
	m.states[userID] = next
	return copyState(next)
}

// copyState clones the event slice so callers cannot alias stored state
func copyState(s State) State {
	out := s
	if s.Events != nil {
		out.Events = make([]time.Time, len(s.Events))
		copy(out.Events, s.Events)
	}
	return out
}
