// Package booking drives the salon booking conversation: it validates each
// user action against the current step, consults the slot registry and the
// external calendar, and produces the replies for the chat channel.
package booking

import "strings"

// Action is one decoded user input. Channels translate their own payloads
// into these types once, at the edge.
type Action interface {
	Kind() string
}

// Text is free text typed by the user.
type Text struct{ Body string }

// StartBooking begins a new booking.
type StartBooking struct{}

// PickCategory narrows the service menu.
type PickCategory struct{ Category string }

// PickService selects a service by name.
type PickService struct{ Service string }

// PickDate selects a date (YYYY-MM-DD).
type PickDate struct{ Date string }

// PickSlot selects a time on a date, typically from a picker widget.
type PickSlot struct{ Date, Time string }

// MoreTimes asks for another page of times.
type MoreTimes struct{ Page int }

// PickStaff selects a stylist by id.
type PickStaff struct{ StaffID string }

// Cancel abandons the conversation or cancels the confirmed booking.
type Cancel struct{}

// Query asks for the user's confirmed booking.
type Query struct{}

// ShowHelp asks for usage help.
type ShowHelp struct{}

func (Text) Kind() string         { return "text" }
func (StartBooking) Kind() string { return "start" }
func (PickCategory) Kind() string { return "pick_category" }
func (PickService) Kind() string  { return "pick_service" }
func (PickDate) Kind() string     { return "pick_date" }
func (PickSlot) Kind() string     { return "pick_slot" }
func (MoreTimes) Kind() string    { return "more_times" }
func (PickStaff) Kind() string    { return "pick_staff" }
func (Cancel) Kind() string       { return "cancel" }
func (Query) Kind() string        { return "query" }
func (ShowHelp) Kind() string     { return "help" }

var keywords = map[string]Action{
	"book":       StartBooking{},
	"booking":    StartBooking{},
	"預約服務":       StartBooking{},
	"cancel":     Cancel{},
	"取消預約":       Cancel{},
	"my booking": Query{},
	"查詢預約":       Query{},
	"help":       ShowHelp{},
	"?":          ShowHelp{},
}

// ParseKeyword maps command words to actions. Anything else stays Text.
func ParseKeyword(body string) (Action, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(body), " "))
	a, ok := keywords[key]
	return a, ok
}
