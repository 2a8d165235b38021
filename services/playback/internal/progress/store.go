// Package progress owns the in-memory progress cache and the throttled
// synchronizer that forwards samples to the remote progress service.
package progress

import (
	"sync"

	"github.com/example/lesson-platform/services/playback/internal/graph"
)

// Record is the last known playback progress for one playable item.
type Record struct {
	ItemID               string
	Kind                 graph.Kind
	LastPositionSeconds  float64
	DurationSeconds      float64
	CompletionPercentage int
	Completed            bool
	UpdatedAtMs          int64
}

// Store is a keyed in-memory cache of progress records per user and item.
// Only the Syncer writes records; readers (unlock gate, continue-watching
// selector, player bootstrap) never mutate what they read.
type Store struct {
	mu    sync.RWMutex
	users map[string]map[string]Record
}

func NewStore() *Store {
	return &Store{users: make(map[string]map[string]Record)}
}

// Upsert replaces the record for (userID, itemID). A previously confirmed
// completion is never downgraded by a later partial sample.
func (s *Store) Upsert(userID string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.users[userID]
	if items == nil {
		items = make(map[string]Record)
		s.users[userID] = items
	}
	if prev, ok := items[r.ItemID]; ok && prev.Completed {
		r.Completed = true
	}
	items[r.ItemID] = r
}

// Get returns the record for (userID, itemID), if any.
func (s *Store) Get(userID, itemID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.users[userID][itemID]
	return r, ok
}

// ConfirmCompleted marks the record completed, as reported by the remote
// progress service. Position and percentage are untouched; the flag is
// authoritative and never downgraded afterwards (see Upsert).
func (s *Store) ConfirmCompleted(userID, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.users[userID][itemID]; ok {
		r.Completed = true
		s.users[userID][itemID] = r
	}
}

// Reset clears all records for a user. Used on logout/session teardown;
// records are never deleted individually during a session.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}
