package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps the event log in memory for tests and dev mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= len(s.events)-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *InMemoryStore) ListByIdentity(_ context.Context, identityID uint64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.IdentityID == identityID && identityID != 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of appended events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Truncate discards all events after the first n. The in-memory transaction
// runner uses it to unwind appends from a failed operation.
func (s *InMemoryStore) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(s.events) {
		s.events = s.events[:n]
	}
}

// All returns the full log in commit order. Test helper.
func (s *InMemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
