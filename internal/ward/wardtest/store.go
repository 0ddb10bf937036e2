// Package wardtest provides an in-memory ward.Store for tests. It favors
// clarity over performance and lets tests mutate the authoritative state
// behind the index's back, which is exactly what the self-healing paths
// need to exercise.
package wardtest

import (
	"context"
	"sort"
	"sync"

	"wardstone.gg/internal/ward"
)

type Store struct {
	mu     sync.RWMutex
	worlds map[string]map[string]ward.Ward

	// PutErr, when set, is returned by Put. Lets migration tests exercise
	// persistence failures.
	PutErr error
}

func NewStore(worlds ...string) *Store {
	s := &Store{worlds: make(map[string]map[string]ward.Ward)}
	for _, w := range worlds {
		s.worlds[w] = make(map[string]ward.Ward)
	}
	return s
}

func (s *Store) Get(_ context.Context, world, id string) (ward.Ward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.worlds[world]
	if !ok {
		return ward.Ward{}, ward.ErrWorldUnknown
	}
	w, ok := m[id]
	if !ok {
		return ward.Ward{}, ward.ErrNotFound
	}
	return w.Clone(), nil
}

func (s *Store) List(_ context.Context, world string) ([]ward.Ward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.worlds[world]
	if !ok {
		return nil, ward.ErrWorldUnknown
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ward.Ward, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id].Clone())
	}
	return out, nil
}

func (s *Store) Put(_ context.Context, w ward.Ward) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.worlds[w.World]
	if !ok {
		m = make(map[string]ward.Ward)
		s.worlds[w.World] = m
	}
	m[w.ID] = w.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, world, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.worlds[world]; ok {
		delete(m, id)
	}
	return nil
}

func (s *Store) Worlds(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.worlds))
	for w := range s.worlds {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}

// Remove deletes a ward without going through the Store interface, standing
// in for an outside actor mutating the authoritative store directly.
func (s *Store) Remove(world, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.worlds[world]; ok {
		delete(m, id)
	}
}
