package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// timeoutGateway bounds every call with a deadline.
type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout wraps g so each call gives up after d. A read that hits the
// deadline reports ErrUnavailable; a write reports a WriteError.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return &timeoutGateway{next: g, timeout: d}
}

func (t *timeoutGateway) HasConflict(ctx context.Context, date, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	conflict, err := t.next.HasConflict(ctx, date, value)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conflict, err
}

func (t *timeoutGateway) AddEvent(ctx context.Context, appt Appointment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	id, err := t.next.AddEvent(ctx, appt)
	return id, asWriteError("insert", err)
}

func (t *timeoutGateway) RemoveEvent(ctx context.Context, date, value, staffID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	found, err := t.next.RemoveEvent(ctx, date, value, staffID)
	return found, asWriteError("delete", err)
}

func asWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Op: op, Err: err}
}
