package salon

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format for slot dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for slot times.
	TimeLayout = "15:04"
)

var (
	// ErrDateFormat is returned for dates that are not YYYY-MM-DD.
	ErrDateFormat = errors.New("salon: date must be YYYY-MM-DD")
	// ErrDateOutOfWindow is returned for dates before today or past the booking window.
	ErrDateOutOfWindow = errors.New("salon: date outside booking window")
	// ErrTimeNotOffered is returned for times that are not on the business-hours grid.
	ErrTimeNotOffered = errors.New("salon: time not offered")
	// ErrTimePassed is returned for today's times that have already started.
	ErrTimePassed = errors.New("salon: time already passed")
)

// Hours describes the bookable grid: slots every Interval from StartHour up to EndHour.
type Hours struct {
	StartHour  int
	EndHour    int
	Interval   time.Duration
	Duration   time.Duration
	WindowDays int
	Location   *time.Location
}

// DefaultHours is 10:00-20:00 in 30-minute steps, bookable 30 days ahead.
func DefaultHours(loc *time.Location) Hours {
	if loc == nil {
		loc = time.UTC
	}
	return Hours{
		StartHour:  10,
		EndHour:    20,
		Interval:   30 * time.Minute,
		Duration:   30 * time.Minute,
		WindowDays: 30,
		Location:   loc,
	}
}

func (h Hours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Times returns every slot start time on the grid, e.g. 10:00, 10:30, ... 19:30.
func (h Hours) Times() []string {
	interval := h.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	start := time.Duration(h.StartHour) * time.Hour
	end := time.Duration(h.EndHour) * time.Hour
	var out []string
	for t := start; t < end; t += interval {
		out = append(out, fmt.Sprintf("%02d:%02d", int(t.Hours()), int(t.Minutes())%60))
	}
	return out
}

// Offers reports whether value is exactly a grid time.
func (h Hours) Offers(value string) bool {
	for _, t := range h.Times() {
		if t == value {
			return true
		}
	}
	return false
}

// OpenTimes returns the grid times on date that have not started yet.
func (h Hours) OpenTimes(date string, now time.Time) []string {
	var out []string
	for _, t := range h.Times() {
		if h.ValidateTime(date, t, now) == nil {
			out = append(out, t)
		}
	}
	return out
}

// Paginate returns the page-th block of size items and whether more follow.
func Paginate(items []string, page, size int) ([]string, bool) {
	if size <= 0 {
		return items, false
	}
	if page < 0 {
		page = 0
	}
	from := page * size
	if from >= len(items) {
		return nil, false
	}
	to := from + size
	if to > len(items) {
		to = len(items)
	}
	return items[from:to], to < len(items)
}

// Window returns the first and last bookable dates relative to now.
func (h Hours) Window(now time.Time) (first, last string) {
	today := now.In(h.location())
	return today.Format(DateLayout), today.AddDate(0, 0, h.WindowDays).Format(DateLayout)
}

// ValidateDate checks value is a date between today and today+WindowDays inclusive.
func (h Hours) ValidateDate(value string, now time.Time) error {
	day, err := time.ParseInLocation(DateLayout, value, h.location())
	if err != nil {
		return ErrDateFormat
	}
	first, last := h.Window(now)
	if d := day.Format(DateLayout); d < first || d > last {
		return ErrDateOutOfWindow
	}
	return nil
}

// ValidateTime checks value is on the grid and, for today, has not started yet.
func (h Hours) ValidateTime(date, value string, now time.Time) error {
	if !h.Offers(value) {
		return ErrTimeNotOffered
	}
	start, err := h.Start(date, value)
	if err != nil {
		return err
	}
	if !start.After(now) {
		return ErrTimePassed
	}
	return nil
}

// Start returns the absolute start of the slot in the salon's timezone.
func (h Hours) Start(date, value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+value, h.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("salon: parse slot %s %s: %w", date, value, err)
	}
	return t, nil
}

// SlotDuration is the length of one appointment.
func (h Hours) SlotDuration() time.Duration {
	if h.Duration <= 0 {
		return 30 * time.Minute
	}
	return h.Duration
}
