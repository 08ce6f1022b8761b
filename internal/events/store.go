package events

import (
	"sync"

	"timetrack/internal/model"
)

// Store holds the current Collection. Each Apply method swaps the
// collection under a lock, so readers never observe a half-applied
// transition.
type Store struct {
	mu  sync.RWMutex
	cur Collection
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current collection. The value is immutable and safe
// to keep after further transitions.
func (s *Store) Snapshot() Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// ApplyLoaded replaces the collection with list.
func (s *Store) ApplyLoaded(list []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = s.cur.ApplyLoaded(list)
}

// ApplyCreated appends e; see Collection.ApplyCreated.
func (s *Store) ApplyCreated(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.cur.ApplyCreated(e)
	s.cur = next
	return err
}

// ApplyUpdated replaces e in place, keeping its position.
func (s *Store) ApplyUpdated(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.cur.ApplyUpdated(e)
	s.cur = next
	return err
}

// ApplyDeleted removes id if present.
func (s *Store) ApplyDeleted(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = s.cur.ApplyDeleted(id)
}

// SelectOrdered reads the store's events in enumeration order.
func SelectOrdered(s *Store) []model.Event {
	return s.Snapshot().Ordered()
}
