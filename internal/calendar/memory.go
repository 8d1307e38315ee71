package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
)

// Event is a calendar entry held by MemoryGateway.
type Event struct {
	ID      string
	Start   time.Time
	End     time.Time
	Summary string
	Owned   bool // written through AddEvent
	StaffID string
	UserID  string
}

// MemoryGateway is an in-process calendar for local runs and tests.
type MemoryGateway struct {
	mu       sync.Mutex
	hours    salon.Hours
	events   map[string]Event
	readErr  error
	writeErr error
}

func NewMemoryGateway(hours salon.Hours) *MemoryGateway {
	return &MemoryGateway{hours: hours, events: make(map[string]Event)}
}

// AddBlock records an event the salon put on the calendar itself, such as a
// holiday or a private appointment. It blocks the slot for every stylist.
func (m *MemoryGateway) AddBlock(date, value, summary string) (string, error) {
	start, err := m.hours.Start(date, value)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.events[id] = Event{ID: id, Start: start, End: start.Add(m.hours.SlotDuration()), Summary: summary}
	return id, nil
}

// FailWith makes subsequent reads and writes fail. nil restores normal behaviour.
func (m *MemoryGateway) FailWith(read, write error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = read
	m.writeErr = write
}

// Events returns a snapshot of all events.
func (m *MemoryGateway) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	return out
}

func (m *MemoryGateway) HasConflict(_ context.Context, date, value string) (bool, error) {
	start, err := m.hours.Start(date, value)
	if err != nil {
		return false, err
	}
	end := start.Add(m.hours.SlotDuration())
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, m.readErr)
	}
	for _, ev := range m.events {
		if ev.Owned {
			continue
		}
		if ev.Start.Before(end) && start.Before(ev.End) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryGateway) AddEvent(_ context.Context, appt Appointment) (string, error) {
	start, err := m.hours.Start(appt.Date, appt.Time)
	if err != nil {
		return "", &WriteError{Op: "insert", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", &WriteError{Op: "insert", Err: m.writeErr}
	}
	id := uuid.NewString()
	m.events[id] = Event{
		ID:      id,
		Start:   start,
		End:     start.Add(m.hours.SlotDuration()),
		Summary: summary(appt),
		Owned:   true,
		StaffID: appt.StaffID,
		UserID:  appt.UserID,
	}
	return id, nil
}

func (m *MemoryGateway) RemoveEvent(_ context.Context, date, value, staffID string) (bool, error) {
	start, err := m.hours.Start(date, value)
	if err != nil {
		return false, &WriteError{Op: "delete", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return false, &WriteError{Op: "delete", Err: m.writeErr}
	}
	found := false
	for id, ev := range m.events {
		if ev.Owned && ev.StaffID == staffID && ev.Start.Equal(start) {
			delete(m.events, id)
			found = true
		}
	}
	return found, nil
}

var _ Gateway = (*MemoryGateway)(nil)
