// Package calendar talks to the salon's shared external calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable means the calendar could not be read, either because the
// backend is down, timed out or was never configured.
var ErrUnavailable = errors.New("calendar: unavailable")

// WriteError reports a failed insert or delete.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("calendar: %s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Appointment is the booking as the calendar sees it.
type Appointment struct {
	UserID    string
	StaffID   string
	StaffName string
	Category  string
	Service   string
	Date      string
	Time      string
}

// Gateway is the contract the booking flow depends on.
//
// HasConflict only counts events that this service did not write; bookings
// made here are tracked per stylist by the slot registry. RemoveEvent only
// touches events written here for the given stylist.
type Gateway interface {
	HasConflict(ctx context.Context, date, time string) (bool, error)
	AddEvent(ctx context.Context, appt Appointment) (string, error)
	RemoveEvent(ctx context.Context, date, time, staffID string) (bool, error)
}

// Unconfigured is used when no calendar backend is set up. Every read fails
// with ErrUnavailable and every write with a WriteError.
type Unconfigured struct{}

func (Unconfigured) HasConflict(context.Context, string, string) (bool, error) {
	return false, fmt.Errorf("%w: no calendar configured", ErrUnavailable)
}

func (Unconfigured) AddEvent(context.Context, Appointment) (string, error) {
	return "", &WriteError{Op: "insert", Err: ErrUnavailable}
}

func (Unconfigured) RemoveEvent(context.Context, string, string, string) (bool, error) {
	return false, &WriteError{Op: "delete", Err: ErrUnavailable}
}

var _ Gateway = Unconfigured{}
