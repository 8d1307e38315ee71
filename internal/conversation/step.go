// Package conversation holds the per-user booking conversation: the step
// machine, its draft and the stores and locks around it.
package conversation

import (
	"fmt"
	"strings"
)

// Step is the position of a user inside the booking flow. The order of the
// constants is the order of the flow.
type Step int

const (
	Idle Step = iota
	AwaitingService
	AwaitingDate
	AwaitingTime
	AwaitingStaff
	AwaitingConfirmation
	Completed
)

var stepNames = [...]string{
	Idle:                 "idle",
	AwaitingService:      "awaiting_service",
	AwaitingDate:         "awaiting_date",
	AwaitingTime:         "awaiting_time",
	AwaitingStaff:        "awaiting_staff",
	AwaitingConfirmation: "awaiting_confirmation",
	Completed:            "completed",
}

func (s Step) String() string {
	if s < Idle || s > Completed {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Next returns the step after s. Idle and Completed have no successor.
func (s Step) Next() (Step, bool) {
	if s < AwaitingService || s >= Completed {
		return s, false
	}
	return s + 1, true
}

// Collects reports which draft field the step is waiting for.
func (s Step) Collects() (Field, bool) {
	switch s {
	case AwaitingService:
		return FieldService, true
	case AwaitingDate:
		return FieldDate, true
	case AwaitingTime:
		return FieldTime, true
	case AwaitingStaff:
		return FieldStaff, true
	case AwaitingConfirmation:
		return FieldConfirmation, true
	default:
		return "", false
	}
}

func (s Step) MarshalText() ([]byte, error) {
	if s < Idle || s > Completed {
		return nil, fmt.Errorf("conversation: unknown step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	for i, name := range stepNames {
		if name == v {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("conversation: unknown step %q", v)
}
