package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidStep is returned when a conversation is advanced that does not exist.
	ErrInvalidStep = errors.New("conversation: no active conversation")
	// ErrStepMismatch is returned when the entry does not belong to the current step.
	ErrStepMismatch = errors.New("conversation: entry does not match current step")
)

// Field names a draft field filled by one step.
type Field string

const (
	FieldService      Field = "service"
	FieldDate         Field = "date"
	FieldTime         Field = "time"
	FieldStaff        Field = "staff"
	FieldConfirmation Field = "confirmation"
)

// Entry is one validated answer. Label carries a display value alongside
// Value, e.g. the stylist name for FieldStaff.
type Entry struct {
	Field Field
	Value string
	Label string
}

// Draft is the partially filled booking.
type Draft struct {
	Category  string `json:"category,omitempty"`
	Service   string `json:"service,omitempty"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	StaffID   string `json:"staff_id,omitempty"`
	StaffName string `json:"staff_name,omitempty"`
}

// State is one user's conversation.
type State struct {
	UserID    string    `json:"user_id"`
	Step      Step      `json:"step"`
	Draft     Draft     `json:"draft"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists conversation state. Get returns (nil, nil) when the user has
// no live conversation.
type Store interface {
	Get(ctx context.Context, userID string) (*State, error)
	Start(ctx context.Context, userID string) (*State, error)
	// Advance writes entry into the draft and moves exactly one step forward.
	Advance(ctx context.Context, userID string, entry Entry) (*State, error)
	// SetCategory narrows the service list without changing the step. Only
	// valid while awaiting a service.
	SetCategory(ctx context.Context, userID, category string) (*State, error)
	Clear(ctx context.Context, userID string) error
}

func newState(userID string, now time.Time) *State {
	return &State{
		UserID:    userID,
		Step:      AwaitingService,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func apply(s *State, entry Entry, now time.Time) error {
	want, ok := s.Step.Collects()
	if !ok || want != entry.Field {
		return fmt.Errorf("%w: step %s, field %s", ErrStepMismatch, s.Step, entry.Field)
	}
	value := strings.TrimSpace(entry.Value)
	if value == "" && entry.Field != FieldConfirmation {
		return fmt.Errorf("conversation: empty value for %s", entry.Field)
	}
	switch entry.Field {
	case FieldService:
		s.Draft.Service = value
		if entry.Label != "" {
			s.Draft.Category = entry.Label
		}
	case FieldDate:
		s.Draft.Date = value
	case FieldTime:
		s.Draft.Time = value
	case FieldStaff:
		s.Draft.StaffID = value
		s.Draft.StaffName = entry.Label
	}
	next, _ := s.Step.Next()
	s.Step = next
	s.UpdatedAt = now
	return nil
}

func applyCategory(s *State, category string, now time.Time) error {
	if s.Step != AwaitingService {
		return fmt.Errorf("%w: step %s, field category", ErrStepMismatch, s.Step)
	}
	s.Draft.Category = strings.TrimSpace(category)
	s.UpdatedAt = now
	return nil
}
