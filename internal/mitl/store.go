package mitl

import (
	"sync"

	"github.com/danielpatrickdp/swarm-governor/internal/message"
)

// #region pending-item
// PendingItem pairs a queued proposal with the action to publish if an
// operator approves it.
type PendingItem struct {
	Proposal message.Proposal `json:"proposal"`
	Action   message.Action   `json:"action"`
}

// PendingEntry is one row of the operator-visible pending list.
type PendingEntry struct {
	ProposalID string           `json:"proposal_id"`
	Proposal   message.Proposal `json:"proposal"`
}

// #endregion pending-item

// #region pending-store
// PendingStore holds proposals awaiting a human decision. Exactly one server
// instance may own a store at a time; the in-memory implementation is not
// safe for multi-instance deployment.
type PendingStore interface {
	Get(id string) (PendingItem, bool)
	List() []PendingEntry
	Insert(id string, item PendingItem)
	Remove(id string) (PendingItem, bool)
}

// #endregion pending-store

// #region memory-store
// MemoryStore is the single-process PendingStore. List preserves insertion
// order for a stable operator view.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]PendingItem
	order []string
}

// NewMemoryStore creates an empty pending store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]PendingItem)}
}

// Get returns the pending item for id.
func (s *MemoryStore) Get(id string) (PendingItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

// List snapshots the pending set in insertion order.
func (s *MemoryStore) List() []PendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]PendingEntry, 0, len(s.items))
	for _, id := range s.order {
		if item, ok := s.items[id]; ok {
			entries = append(entries, PendingEntry{ProposalID: id, Proposal: item.Proposal})
		}
	}
	return entries
}

// Insert adds or overwrites the item for id.
func (s *MemoryStore) Insert(id string, item PendingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
}

// Remove deletes and returns the item for id.
func (s *MemoryStore) Remove(id string) (PendingItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return PendingItem{}, false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return item, true
}

// #endregion memory-store
