// Package slots tracks which stylists are busy at which (date, time) slot.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSlotTaken is returned by Reserve when another user already holds the slot.
var ErrSlotTaken = errors.New("slots: slot already taken")

// Key identifies one fixed-length appointment slot. Keys match only when both
// strings are identical; there is no overlap arithmetic.
type Key struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// NewKey builds a Key from its parts.
func NewKey(date, t string) Key {
	return Key{Date: date, Time: t}
}

func (k Key) String() string {
	return k.Date + " " + k.Time
}

// Valid reports whether both parts are set.
func (k Key) Valid() bool {
	return k.Date != "" && k.Time != ""
}

// Registry records per-staff reservations. Reserve must be atomic: for
// concurrent calls on the same (staffID, slot) exactly one user wins.
type Registry interface {
	IsStaffFree(ctx context.Context, staffID string, slot Key) (bool, error)
	Reserve(ctx context.Context, staffID string, slot Key, userID string) error
	Release(ctx context.Context, staffID string, slot Key) error
	ListAvailableStaff(ctx context.Context, candidates []string, slot Key) ([]string, error)
}

func filterFree(candidates []string, busy func(string) bool) []string {
	free := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !busy(id) {
			free = append(free, id)
		}
	}
	return free
}

// reservationTTL keeps a reservation until a day after its slot has ended.
func reservationTTL(slot Key, loc *time.Location, now time.Time) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", slot.String(), loc)
	if err != nil {
		return 48 * time.Hour
	}
	ttl := start.Add(24 * time.Hour).Sub(now)
	if ttl < time.Hour {
		return time.Hour
	}
	return ttl
}

func validate(staffID string, slot Key) error {
	if staffID == "" {
		return fmt.Errorf("slots: staff id required")
	}
	if !slot.Valid() {
		return fmt.Errorf("slots: invalid slot %q", slot.String())
	}
	return nil
}
