package statestore

import (
	"context"
	"sync"

	"github.com/rpm-software-management/libdnf-sub006/internal/module"
)

// MemoryStore keeps module states in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]module.RuntimeState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]module.RuntimeState)}
}

func (s *MemoryStore) Load(context.Context) (map[string]module.RuntimeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStates(s.states), nil
}

func (s *MemoryStore) Save(_ context.Context, states map[string]module.RuntimeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = copyStates(states)
	return nil
}

func copyStates(in map[string]module.RuntimeState) map[string]module.RuntimeState {
	out := make(map[string]module.RuntimeState, len(in))
	for name, st := range in {
		st.InstalledProfiles = append([]string(nil), st.InstalledProfiles...)
		out[name] = st
	}
	return out
}
