package conversation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state   State
	expires time.Time
}

// MemoryStore keeps conversations in process. Entries idle for longer than
// the TTL are treated as absent and removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore creates a store. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

func (s *MemoryStore) live(userID string, now time.Time) (*memoryEntry, bool) {
	e, ok := s.entries[userID]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && !now.Before(e.expires) {
		delete(s.entries, userID)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) touch(e *memoryEntry, now time.Time) {
	if s.ttl > 0 {
		e.expires = now.Add(s.ttl)
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(userID, s.now())
	if !ok {
		return nil, nil
	}
	st := e.state
	return &st, nil
}

func (s *MemoryStore) Start(_ context.Context, userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := &memoryEntry{state: *newState(userID, now)}
	s.touch(e, now)
	s.entries[userID] = e
	st := e.state
	return &st, nil
}

func (s *MemoryStore) Advance(_ context.Context, userID string, entry Entry) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.live(userID, now)
	if !ok {
		return nil, ErrInvalidStep
	}
	next := e.state
	if err := apply(&next, entry, now); err != nil {
		return nil, err
	}
	e.state = next
	s.touch(e, now)
	return &next, nil
}

func (s *MemoryStore) SetCategory(_ context.Context, userID, category string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.live(userID, now)
	if !ok {
		return nil, ErrInvalidStep
	}
	next := e.state
	if err := applyCategory(&next, category, now); err != nil {
		return nil, err
	}
	e.state = next
	s.touch(e, now)
	return &next, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// Sweep drops expired conversations and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored conversations, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
