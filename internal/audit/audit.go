// Package audit keeps an append-only trail of booking changes and admin actions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
)

// EventType names what happened.
type EventType string

const (
	// EventBookingConfirmed is logged when a customer completes a booking.
	EventBookingConfirmed EventType = "booking.confirmed"
	// EventBookingCancelled is logged when a booking is removed, by anyone.
	EventBookingCancelled EventType = "booking.cancelled"
	// EventAdminCancelled is logged when an admin cancels through the API.
	EventAdminCancelled EventType = "admin.booking_cancelled"
)

// Event is an immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	Actor     string          `json:"actor"`
	UserID    string          `json:"user_id"`
	BookingID string          `json:"booking_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Details is the slot a record refers to.
type Details struct {
	StaffID string `json:"staff_id"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

// Filter narrows QueryEvents.
type Filter struct {
	UserID    string
	EventType EventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Log is where events are written and read back.
type Log interface {
	LogEvent(ctx context.Context, event Event) error
	QueryEvents(ctx context.Context, filter Filter) ([]Event, error)
}

// Service writes audit events to the audit_events table.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	if db == nil {
		panic("audit: db required")
	}
	return &Service{db: db}
}

// LogEvent records an audit event.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	event = normalize(event)

	query := `
		INSERT INTO audit_events (
			id, event_type, actor, user_id, booking_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Actor,
		event.UserID,
		nullString(event.BookingID),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// QueryEvents returns matching events, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, actor, user_id, booking_id, details, created_at
		FROM audit_events
		WHERE 1 = 1
	`
	var args []any
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var bookingID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.Actor, &e.UserID, &bookingID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.BookingID = bookingID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read events: %w", err)
	}
	return events, nil
}

// MemoryLog keeps the most recent events in process.
type MemoryLog struct {
	mu     sync.Mutex
	max    int
	events []Event
}

// NewMemoryLog keeps at most max events; older ones are dropped.
func NewMemoryLog(max int) *MemoryLog {
	if max <= 0 {
		max = 1000
	}
	return &MemoryLog{max: max}
}

func (m *MemoryLog) LogEvent(_ context.Context, event Event) error {
	event = normalize(event)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if over := len(m.events) - m.max; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

func (m *MemoryLog) QueryEvents(_ context.Context, filter Filter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	skipped := 0
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if !filter.matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f Filter) matches(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if !f.StartTime.IsZero() && e.CreatedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.CreatedAt.After(f.EndTime) {
		return false
	}
	return true
}

// BookingEvent builds an event describing b.
func BookingEvent(t EventType, actor string, b booking.Booking) Event {
	details, _ := json.Marshal(Details{StaffID: b.StaffID, Service: b.Service, Date: b.Date, Time: b.Time})
	return Event{
		EventType: t,
		Actor:     actor,
		UserID:    b.UserID,
		BookingID: b.ID.String(),
		Details:   details,
	}
}

type actorKey struct{}

// WithActor marks changes made under ctx as done by an admin.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the admin set by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

// Notifier records every committed booking and cancellation. Cancellations
// under WithActor are recorded as admin actions.
type Notifier struct {
	log Log
}

func NewNotifier(log Log) *Notifier {
	if log == nil {
		panic("audit: log required")
	}
	return &Notifier{log: log}
}

func (n *Notifier) BookingConfirmed(ctx context.Context, b booking.Booking) error {
	return n.log.LogEvent(ctx, BookingEvent(EventBookingConfirmed, b.UserID, b))
}

func (n *Notifier) BookingCancelled(ctx context.Context, b booking.Booking) error {
	if admin, ok := ActorFromContext(ctx); ok {
		return n.log.LogEvent(ctx, BookingEvent(EventAdminCancelled, admin, b))
	}
	return n.log.LogEvent(ctx, BookingEvent(EventBookingCancelled, b.UserID, b))
}

var _ booking.Notifier = (*Notifier)(nil)

func normalize(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
