package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
)

// ErrAlreadyBooked is returned by Ledger.Create when the user already holds a booking.
var ErrAlreadyBooked = errors.New("booking: user already has a booking")

// Booking is a confirmed appointment.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	StaffID   string    `json:"staff_id"`
	StaffName string    `json:"staff_name"`
	Category  string    `json:"category"`
	Service   string    `json:"service"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	EventID   string    `json:"event_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Slot returns the booking's slot key.
func (b Booking) Slot() slots.Key {
	return slots.NewKey(b.Date, b.Time)
}

// Ledger stores confirmed bookings, at most one per user.
type Ledger interface {
	Create(ctx context.Context, b Booking) error
	// GetByUser returns (nil, nil) when the user has no booking.
	GetByUser(ctx context.Context, userID string) (*Booking, error)
	DeleteByUser(ctx context.Context, userID string) error
	ListByDate(ctx context.Context, date string) ([]Booking, error)
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu     sync.RWMutex
	byUser map[string]Booking
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byUser: make(map[string]Booking)}
}

func (l *MemoryLedger) Create(_ context.Context, b Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byUser[b.UserID]; ok {
		return ErrAlreadyBooked
	}
	l.byUser[b.UserID] = b
	return nil
}

func (l *MemoryLedger) GetByUser(_ context.Context, userID string) (*Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (l *MemoryLedger) DeleteByUser(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byUser, userID)
	return nil
}

func (l *MemoryLedger) ListByDate(_ context.Context, date string) ([]Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Booking, 0)
	for _, b := range l.byUser {
		if b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].StaffID < out[j].StaffID
	})
	return out, nil
}

var _ Ledger = (*MemoryLedger)(nil)
