package slots

import (
	"context"
	"sync"
)

// MemoryRegistry keeps reservations in process. One mutex guards the whole
// map, which makes Reserve trivially atomic.
type MemoryRegistry struct {
	mu   sync.Mutex
	busy map[string]map[Key]string // staff -> slot -> holder
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{busy: make(map[string]map[Key]string)}
}

func (r *MemoryRegistry) IsStaffFree(_ context.Context, staffID string, slot Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.busy[staffID][slot]
	return !taken, nil
}

func (r *MemoryRegistry) Reserve(_ context.Context, staffID string, slot Key, userID string) error {
	if err := validate(staffID, slot); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	held, ok := r.busy[staffID]
	if !ok {
		held = make(map[Key]string)
		r.busy[staffID] = held
	}
	if holder, taken := held[slot]; taken {
		if holder == userID {
			return nil
		}
		return ErrSlotTaken
	}
	held[slot] = userID
	return nil
}

func (r *MemoryRegistry) Release(_ context.Context, staffID string, slot Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.busy[staffID]; ok {
		delete(held, slot)
		if len(held) == 0 {
			delete(r.busy, staffID)
		}
	}
	return nil
}

func (r *MemoryRegistry) ListAvailableStaff(_ context.Context, candidates []string, slot Key) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return filterFree(candidates, func(id string) bool {
		_, taken := r.busy[id][slot]
		return taken
	}), nil
}

// Holder returns who holds a slot, mainly for diagnostics.
func (r *MemoryRegistry) Holder(staffID string, slot Key) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, ok := r.busy[staffID][slot]
	return holder, ok
}

var _ Registry = (*MemoryRegistry)(nil)
