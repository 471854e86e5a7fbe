package service

import (
	"sync"

	"order_watch/internal/domain"
)

// OrderStore holds the materialized state of every known order. The
// ingest pipeline is its only writer; everything else reads snapshots.
// Ids keep first-seen order and are never re-sorted by later updates.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	ids     []string
	version uint64
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
	}
}

// Get returns a copy of the order for external reads.
func (s *OrderStore) Get(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// IDs returns a copy of the full id list in insertion order.
func (s *OrderStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.ids))
	copy(ids, s.ids)
	return ids
}

// Len returns the number of known orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Version increments whenever an id is added. Derived views compare it to
// decide when a recompute is due; in-place field updates do not bump it.
func (s *OrderStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Add materializes a new order. The id joins the end of the insertion
// list exactly once; a duplicate id falls through to an update.
func (s *OrderStore) Add(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; !exists {
		s.ids = append(s.ids, o.ID)
		s.version++
	}
	s.orders[o.ID] = o
}

// Update replaces the stored state for an already-known order. The id
// list and the store version are untouched.
func (s *OrderStore) Update(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; !exists {
		// Unknown id on an update path; treat as create to stay consistent.
		s.ids = append(s.ids, o.ID)
		s.version++
	}
	s.orders[o.ID] = o
}

// All returns a snapshot of every order in insertion order.
func (s *OrderStore) All() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.ids))
	for _, id := range s.ids {
		if o, ok := s.orders[id]; ok {
			result = append(result, *o)
		}
	}
	return result
}
