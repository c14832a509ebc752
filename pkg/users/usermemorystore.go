// FILE: users/usermemorystore.go

package users

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore is a thread-safe, in-memory implementation of the Store interface.
type InMemoryStore struct {
	sync.RWMutex
	order []User
	index map[string]int
}

// NewInMemoryStore creates a new, empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		index: make(map[string]int),
	}
}

// Append adds users whose ids are not yet stored, keeping arrival order.
func (s *InMemoryStore) Append(ctx context.Context, list []User) (int, error) {
	s.Lock()
	defer s.Unlock()
	added := 0
	for _, u := range list {
		if _, ok := s.index[u.ID]; ok {
			continue
		}
		s.index[u.ID] = len(s.order)
		s.order = append(s.order, u)
		added++
	}
	return added, nil
}

func (s *InMemoryStore) Remove(ctx context.Context, ids []string) (int, error) {
	s.Lock()
	defer s.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.order[:0]
	removed := 0
	for _, u := range s.order {
		if _, ok := drop[u.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, u)
	}
	s.order = kept
	s.reindex()
	return removed, nil
}

func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	s.order = nil
	s.index = make(map[string]int)
	return nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]User, error) {
	s.RLock()
	defer s.RUnlock()
	out := make([]User, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Get returns one user, or an error wrapping ErrNotFound.
func (s *InMemoryStore) Get(ctx context.Context, id string) (User, error) {
	s.RLock()
	defer s.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return s.order[i], nil
}

// reindex rebuilds the id index after a removal. Callers hold the lock.
func (s *InMemoryStore) reindex() {
	s.index = make(map[string]int, len(s.order))
	for i, u := range s.order {
		s.index[u.ID] = i
	}
}
