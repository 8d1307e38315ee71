package booking

import "github.com/wolfman30/salon-booking-assistant/internal/salon"

// Rejection reasons shown to the user.
const (
	ReasonInvalidInput  = "invalid input"
	ReasonSlotConflicts = "slot conflicts"
	ReasonAllStaffBusy  = "all staff busy"
	ReasonSlotTaken     = "slot taken"
	ReasonTryLater      = "please try again later"
	ReasonAlreadyBooked = "already booked"
)

// Reply is one outbound message. Channels decide how to render it.
type Reply interface {
	Kind() string
}

// PromptForService offers categories until one is chosen, then its services.
type PromptForService struct {
	Category   string
	Categories []string
	Services   []string
}

// PromptForDate asks for a date between Min and Max inclusive.
type PromptForDate struct {
	Service string
	Min     string
	Max     string
}

// PromptForTime offers one page of open times on Date.
type PromptForTime struct {
	Date    string
	Options []string
	Page    int
	HasMore bool
}

// PromptForStaff offers the stylists free at the chosen slot.
type PromptForStaff struct {
	Date  string
	Time  string
	Staff []salon.Staff
}

type BookingConfirmed struct{ Booking Booking }

// BookingRejected explains why the last input was not accepted.
type BookingRejected struct {
	Reason string
	Detail string
}

// BookingCancelled is sent after a draft or a confirmed booking is dropped.
// Booking is nil when only an unfinished draft was cancelled.
type BookingCancelled struct{ Booking *Booking }

type BookingSummary struct{ Booking Booking }

type NoBooking struct{}

type Help struct{}

func (PromptForService) Kind() string { return "prompt_service" }
func (PromptForDate) Kind() string    { return "prompt_date" }
func (PromptForTime) Kind() string    { return "prompt_time" }
func (PromptForStaff) Kind() string   { return "prompt_staff" }
func (BookingConfirmed) Kind() string { return "confirmed" }
func (BookingRejected) Kind() string  { return "rejected" }
func (BookingCancelled) Kind() string { return "cancelled" }
func (BookingSummary) Kind() string   { return "summary" }
func (NoBooking) Kind() string        { return "no_booking" }
func (Help) Kind() string             { return "help" }
