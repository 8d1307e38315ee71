package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-booking-assistant/internal/calendar"
	"github.com/wolfman30/salon-booking-assistant/internal/conversation"
	"github.com/wolfman30/salon-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/internal/slots"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CalendarPolicy decides what happens when the external calendar fails.
type CalendarPolicy int

const (
	// FailClosed refuses to book while the calendar cannot be read or written.
	FailClosed CalendarPolicy = iota
	// AssumeFree treats an unreadable calendar as free and logs failed writes.
	AssumeFree
)

func (p CalendarPolicy) String() string {
	if p == AssumeFree {
		return "assume_free"
	}
	return "fail_closed"
}

// ErrCancelAborted is returned by CancelBooking when the calendar event
// could not be removed and nothing was changed.
var ErrCancelAborted = errors.New("booking: cancellation aborted, calendar unavailable")

// Notifier is told about committed bookings and cancellations. Errors are
// logged and never undo the booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b Booking) error
	BookingCancelled(ctx context.Context, b Booking) error
}

// Notifiers fans every change out to each notifier in turn.
type Notifiers []Notifier

func (ns Notifiers) BookingConfirmed(ctx context.Context, b Booking) error {
	var errs []error
	for _, n := range ns {
		if err := n.BookingConfirmed(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ns Notifiers) BookingCancelled(ctx context.Context, b Booking) error {
	var errs []error
	for _, n := range ns {
		if err := n.BookingCancelled(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options wires an Orchestrator.
type Options struct {
	Directory     *salon.Directory
	Hours         salon.Hours
	Slots         slots.Registry
	Conversations conversation.Store
	Locker        conversation.Locker
	Calendar      calendar.Gateway
	Ledger        Ledger
	Policy        CalendarPolicy
	TimesPerPage  int
	Notifier      Notifier
	Metrics       *metrics.BookingMetrics
	Logger        *logging.Logger
	Now           func() time.Time
}

// Orchestrator runs the booking flow. Every call to Handle for a user holds
// that user's lock, so a user's conversation is never mutated concurrently.
type Orchestrator struct {
	dir      *salon.Directory
	hours    salon.Hours
	slots    slots.Registry
	convs    conversation.Store
	locker   conversation.Locker
	cal      calendar.Gateway
	ledger   Ledger
	policy   CalendarPolicy
	perPage  int
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Directory == nil {
		panic("booking: directory required")
	}
	if opts.Slots == nil {
		panic("booking: slot registry required")
	}
	if opts.Conversations == nil {
		panic("booking: conversation store required")
	}
	if opts.Calendar == nil {
		panic("booking: calendar gateway required")
	}
	if opts.Ledger == nil {
		panic("booking: ledger required")
	}
	if opts.Locker == nil {
		opts.Locker = conversation.NewKeyedMutex()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TimesPerPage <= 0 {
		opts.TimesPerPage = 4
	}
	return &Orchestrator{
		dir:      opts.Directory,
		hours:    opts.Hours,
		slots:    opts.Slots,
		convs:    opts.Conversations,
		locker:   opts.Locker,
		cal:      opts.Calendar,
		ledger:   opts.Ledger,
		policy:   opts.Policy,
		perPage:  opts.TimesPerPage,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		tracer:   otel.Tracer("salon.internal.booking"),
	}
}

// OnTextInput handles typed text.
func (o *Orchestrator) OnTextInput(ctx context.Context, userID, text string) []Reply {
	return o.Handle(ctx, userID, Text{Body: text})
}

// OnSlotPick handles a (date, time) chosen from a picker.
func (o *Orchestrator) OnSlotPick(ctx context.Context, userID, date, t string) []Reply {
	return o.Handle(ctx, userID, PickSlot{Date: date, Time: t})
}

// OnStaffPick handles a stylist chosen from the offered list.
func (o *Orchestrator) OnStaffPick(ctx context.Context, userID, staffID string) []Reply {
	return o.Handle(ctx, userID, PickStaff{StaffID: staffID})
}

// OnCancelCommand handles an explicit cancel.
func (o *Orchestrator) OnCancelCommand(ctx context.Context, userID string) []Reply {
	return o.Handle(ctx, userID, Cancel{})
}

// Handle applies one action for userID and returns the replies to send.
// Failures are turned into replies; Handle never returns an error.
func (o *Orchestrator) Handle(ctx context.Context, userID string, action Action) []Reply {
	ctx, span := o.tracer.Start(ctx, "booking.handle")
	defer span.End()
	span.SetAttributes(attribute.String("booking.action", action.Kind()))
	o.metrics.ObserveAction(action.Kind())

	if strings.TrimSpace(userID) == "" {
		return o.reject(ReasonInvalidInput, "missing user")
	}
	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		o.logger.Error("booking: failed to lock user", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	defer unlock()

	state, err := o.convs.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("booking: failed to load conversation", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}

	if t, ok := action.(Text); ok {
		if kw, ok := ParseKeyword(t.Body); ok {
			action = kw
		}
	}

	switch action.(type) {
	case StartBooking:
		return o.start(ctx, userID)
	case Cancel:
		return o.cancel(ctx, userID, state)
	case Query:
		return o.query(ctx, userID)
	case ShowHelp:
		return []Reply{Help{}}
	}

	if state == nil {
		if _, ok := action.(Text); ok {
			return []Reply{Help{}}
		}
		// A stale button from an expired or finished conversation.
		return append(o.reject(ReasonInvalidInput, "no booking in progress"), Help{})
	}

	switch a := action.(type) {
	case Text:
		return o.onText(ctx, state, a.Body)
	case PickCategory:
		return o.pickCategory(ctx, state, a.Category)
	case PickService:
		return o.pickService(ctx, state, a.Service)
	case PickDate:
		return o.pickDate(ctx, state, a.Date)
	case PickSlot:
		return o.pickSlot(ctx, state, a.Date, a.Time)
	case MoreTimes:
		if state.Step != conversation.AwaitingTime {
			return o.invalid(ctx, state, "")
		}
		return []Reply{o.timePrompt(state.Draft.Date, a.Page)}
	case PickStaff:
		return o.pickStaff(ctx, state, a.StaffID)
	default:
		return o.invalid(ctx, state, "")
	}
}

func (o *Orchestrator) start(ctx context.Context, userID string) []Reply {
	existing, err := o.ledger.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Error("booking: failed to load booking", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	if existing != nil {
		return append(o.reject(ReasonAlreadyBooked, "cancel your current booking first"),
			BookingSummary{Booking: *existing})
	}
	if _, err := o.convs.Start(ctx, userID); err != nil {
		o.logger.Error("booking: failed to start conversation", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	return []Reply{o.servicePrompt("")}
}

func (o *Orchestrator) onText(ctx context.Context, state *conversation.State, body string) []Reply {
	body = strings.TrimSpace(body)
	switch state.Step {
	case conversation.AwaitingService:
		if _, _, ok := o.dir.FindService(body); ok {
			return o.pickService(ctx, state, body)
		}
		if _, ok := o.dir.Category(body); ok {
			return o.pickCategory(ctx, state, body)
		}
		return o.invalid(ctx, state, "unknown service")
	case conversation.AwaitingDate:
		return o.pickDate(ctx, state, body)
	case conversation.AwaitingTime:
		return o.pickTime(ctx, state, body)
	case conversation.AwaitingStaff:
		staff, ok := o.dir.FindStaff(body)
		if !ok {
			return o.invalid(ctx, state, "unknown stylist")
		}
		return o.pickStaff(ctx, state, staff.ID)
	default:
		return o.invalid(ctx, state, "")
	}
}

func (o *Orchestrator) pickCategory(ctx context.Context, state *conversation.State, name string) []Reply {
	if state.Step != conversation.AwaitingService {
		return o.invalid(ctx, state, "")
	}
	cat, ok := o.dir.Category(name)
	if !ok {
		return o.invalid(ctx, state, "unknown category")
	}
	if _, err := o.convs.SetCategory(ctx, state.UserID, cat.Name); err != nil {
		return o.storeFailure(ctx, state, err)
	}
	return []Reply{o.servicePrompt(cat.Name)}
}

func (o *Orchestrator) pickService(ctx context.Context, state *conversation.State, name string) []Reply {
	if state.Step != conversation.AwaitingService {
		return o.invalid(ctx, state, "")
	}
	category, service, ok := o.dir.FindService(name)
	if !ok {
		return o.invalid(ctx, state, "unknown service")
	}
	entry := conversation.Entry{Field: conversation.FieldService, Value: service, Label: category}
	if _, err := o.convs.Advance(ctx, state.UserID, entry); err != nil {
		return o.storeFailure(ctx, state, err)
	}
	return []Reply{o.datePrompt(service)}
}

func (o *Orchestrator) pickDate(ctx context.Context, state *conversation.State, date string) []Reply {
	if state.Step != conversation.AwaitingDate {
		return o.invalid(ctx, state, "")
	}
	date = strings.TrimSpace(date)
	if err := o.hours.ValidateDate(date, o.now()); err != nil {
		return o.invalid(ctx, state, err.Error())
	}
	if len(o.hours.OpenTimes(date, o.now())) == 0 {
		return o.invalid(ctx, state, "no times left on that date")
	}
	if _, err := o.convs.Advance(ctx, state.UserID, conversation.Entry{Field: conversation.FieldDate, Value: date}); err != nil {
		return o.storeFailure(ctx, state, err)
	}
	return []Reply{o.timePrompt(date, 0)}
}

// pickSlot accepts a date and time in one input. At AwaitingDate it records
// the date first; at AwaitingTime the date must match the draft.
func (o *Orchestrator) pickSlot(ctx context.Context, state *conversation.State, date, t string) []Reply {
	switch state.Step {
	case conversation.AwaitingDate:
		if err := o.hours.ValidateDate(date, o.now()); err != nil {
			return o.invalid(ctx, state, err.Error())
		}
		if err := o.hours.ValidateTime(date, t, o.now()); err != nil {
			return o.invalid(ctx, state, err.Error())
		}
		next, err := o.convs.Advance(ctx, state.UserID, conversation.Entry{Field: conversation.FieldDate, Value: date})
		if err != nil {
			return o.storeFailure(ctx, state, err)
		}
		return o.pickTime(ctx, next, t)
	case conversation.AwaitingTime:
		if date != state.Draft.Date {
			return o.invalid(ctx, state, "that date was not selected")
		}
		return o.pickTime(ctx, state, t)
	default:
		return o.invalid(ctx, state, "")
	}
}

func (o *Orchestrator) pickTime(ctx context.Context, state *conversation.State, t string) []Reply {
	if state.Step != conversation.AwaitingTime {
		return o.invalid(ctx, state, "")
	}
	t = strings.TrimSpace(t)
	date := state.Draft.Date
	if err := o.hours.ValidateTime(date, t, o.now()); err != nil {
		return o.invalid(ctx, state, err.Error())
	}

	conflict, err := o.hasConflict(ctx, date, t)
	if err != nil {
		if o.policy == FailClosed {
			o.logger.Warn("booking: calendar unavailable, refusing slot",
				"user_id", state.UserID, "date", date, "time", t, "error", err)
			return append(o.reject(ReasonTryLater, ""), o.timePrompt(date, 0))
		}
		o.logger.Warn("booking: calendar unavailable, assuming free",
			"user_id", state.UserID, "date", date, "time", t, "error", err)
		conflict = false
	}
	if conflict {
		return append(o.reject(ReasonSlotConflicts, date+" "+t), o.timePrompt(date, 0))
	}

	available, err := o.slots.ListAvailableStaff(ctx, o.dir.StaffIDs(), slots.NewKey(date, t))
	if err != nil {
		o.logger.Error("booking: failed to list staff", "user_id", state.UserID, "date", date, "time", t, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	if len(available) == 0 {
		return append(o.reject(ReasonAllStaffBusy, date+" "+t), o.timePrompt(date, 0))
	}

	if _, err := o.convs.Advance(ctx, state.UserID, conversation.Entry{Field: conversation.FieldTime, Value: t}); err != nil {
		return o.storeFailure(ctx, state, err)
	}
	return []Reply{PromptForStaff{Date: date, Time: t, Staff: o.dir.StaffList(available)}}
}

func (o *Orchestrator) pickStaff(ctx context.Context, state *conversation.State, staffID string) []Reply {
	if state.Step != conversation.AwaitingStaff {
		return o.invalid(ctx, state, "")
	}
	staff, ok := o.dir.StaffByID(strings.TrimSpace(staffID))
	if !ok {
		return o.invalid(ctx, state, "unknown stylist")
	}
	draft := state.Draft
	if err := o.hours.ValidateTime(draft.Date, draft.Time, o.now()); err != nil {
		return o.rewindToTime(ctx, state, err)
	}
	slot := slots.NewKey(draft.Date, draft.Time)
	log := o.logger.With("user_id", state.UserID, "staff_id", staff.ID, "date", draft.Date, "time", draft.Time)

	available, err := o.slots.ListAvailableStaff(ctx, o.dir.StaffIDs(), slot)
	if err != nil {
		log.Error("booking: failed to list staff", "error", err)
		return o.reject(ReasonTryLater, "")
	}
	if !contains(available, staff.ID) {
		return o.staffTaken(ctx, state, available)
	}

	if err := o.slots.Reserve(ctx, staff.ID, slot, state.UserID); err != nil {
		if errors.Is(err, slots.ErrSlotTaken) {
			available, lerr := o.slots.ListAvailableStaff(ctx, o.dir.StaffIDs(), slot)
			if lerr != nil {
				log.Error("booking: failed to list staff", "error", lerr)
				return o.reject(ReasonTryLater, "")
			}
			return o.staffTaken(ctx, state, available)
		}
		log.Error("booking: failed to reserve slot", "error", err)
		return o.reject(ReasonTryLater, "")
	}

	b := Booking{
		ID:        uuid.New(),
		UserID:    state.UserID,
		StaffID:   staff.ID,
		StaffName: staff.Name,
		Category:  draft.Category,
		Service:   draft.Service,
		Date:      draft.Date,
		Time:      draft.Time,
		CreatedAt: o.now().UTC(),
	}

	eventID, err := o.addEvent(ctx, b)
	if err != nil {
		if o.policy == FailClosed {
			log.Warn("booking: calendar write failed, releasing slot", "error", err)
			o.release(ctx, log, staff.ID, slot)
			o.metrics.ObserveOutcome("rejected", ReasonTryLater)
			return []Reply{BookingRejected{Reason: ReasonTryLater}}
		}
		log.Warn("booking: calendar write failed, booking without event", "error", err)
	}
	b.EventID = eventID

	if err := o.ledger.Create(ctx, b); err != nil {
		log.Error("booking: failed to record booking, rolling back", "error", err)
		if eventID != "" {
			if _, rerr := o.removeEvent(ctx, b.Date, b.Time, b.StaffID); rerr != nil {
				log.Error("booking: rollback left calendar event behind", "event_id", eventID, "error", rerr)
			}
		}
		o.release(ctx, log, staff.ID, slot)
		if errors.Is(err, ErrAlreadyBooked) {
			return o.reject(ReasonAlreadyBooked, "")
		}
		return o.reject(ReasonTryLater, "")
	}

	o.finish(ctx, log, state.UserID, staff)
	log.Info("booking: confirmed", "booking_id", b.ID.String(), "event_id", eventID, "service", b.Service)
	o.metrics.ObserveOutcome("confirmed", "")
	if o.notifier != nil {
		if err := o.notifier.BookingConfirmed(ctx, b); err != nil {
			log.Warn("booking: confirmation notice failed", "error", err)
		}
	}
	return []Reply{BookingConfirmed{Booking: b}}
}

// finish walks the conversation through its last two steps and drops it.
// The booking is already committed, so failures here are only logged.
func (o *Orchestrator) finish(ctx context.Context, log *logging.Logger, userID string, staff salon.Staff) {
	entries := []conversation.Entry{
		{Field: conversation.FieldStaff, Value: staff.ID, Label: staff.Name},
		{Field: conversation.FieldConfirmation},
	}
	for _, e := range entries {
		if _, err := o.convs.Advance(ctx, userID, e); err != nil {
			log.Warn("booking: failed to advance finished conversation", "field", string(e.Field), "error", err)
			break
		}
	}
	if err := o.convs.Clear(ctx, userID); err != nil {
		log.Warn("booking: failed to clear finished conversation", "error", err)
	}
}

// rewindToTime handles a chosen time that started while the user was picking
// a stylist. Steps only move forward, so the conversation is restarted and
// replayed up to the time step (or the date step when the day is over).
func (o *Orchestrator) rewindToTime(ctx context.Context, state *conversation.State, cause error) []Reply {
	d := state.Draft
	log := o.logger.With("user_id", state.UserID, "date", d.Date, "time", d.Time)
	log.Info("booking: chosen time no longer open", "error", cause)

	entries := []conversation.Entry{{Field: conversation.FieldService, Value: d.Service, Label: d.Category}}
	open := len(o.hours.OpenTimes(d.Date, o.now())) > 0
	if open {
		entries = append(entries, conversation.Entry{Field: conversation.FieldDate, Value: d.Date})
	}
	if _, err := o.convs.Start(ctx, state.UserID); err != nil {
		return o.storeFailure(ctx, state, err)
	}
	for _, e := range entries {
		if _, err := o.convs.Advance(ctx, state.UserID, e); err != nil {
			return o.storeFailure(ctx, state, err)
		}
	}
	rejected := o.reject(ReasonInvalidInput, cause.Error())
	if !open {
		return append(rejected, o.datePrompt(d.Service))
	}
	return append(rejected, o.timePrompt(d.Date, 0))
}

func (o *Orchestrator) staffTaken(ctx context.Context, state *conversation.State, available []string) []Reply {
	date, t := state.Draft.Date, state.Draft.Time
	if len(available) == 0 {
		return append(o.reject(ReasonAllStaffBusy, date+" "+t), o.timePrompt(date, 0))
	}
	return append(o.reject(ReasonSlotTaken, date+" "+t),
		PromptForStaff{Date: date, Time: t, Staff: o.dir.StaffList(available)})
}

// cancel prefers the ledger: a conversation left behind by a commit whose
// Clear failed still names the booked slot, and must not be unwound as a draft.
func (o *Orchestrator) cancel(ctx context.Context, userID string, state *conversation.State) []Reply {
	b, err := o.ledger.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Error("booking: failed to load booking", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	if b != nil {
		return o.cancelBooking(ctx, *b)
	}
	if state != nil {
		return o.cancelDraft(ctx, state)
	}
	return []Reply{NoBooking{}}
}

// cancelDraft drops an unfinished conversation. A draft only names a stylist
// if a previous attempt stopped between reserving and finishing, so that
// slot and any event are released too.
func (o *Orchestrator) cancelDraft(ctx context.Context, state *conversation.State) []Reply {
	d := state.Draft
	log := o.logger.With("user_id", state.UserID, "staff_id", d.StaffID, "date", d.Date, "time", d.Time)
	if d.StaffID != "" && d.Date != "" && d.Time != "" {
		if _, err := o.removeEvent(ctx, d.Date, d.Time, d.StaffID); err != nil {
			log.Error("booking: cancel could not remove calendar event", "error", err)
		}
		o.release(ctx, log, d.StaffID, slots.NewKey(d.Date, d.Time))
	}
	if err := o.convs.Clear(ctx, state.UserID); err != nil {
		log.Error("booking: failed to clear conversation", "error", err)
		return o.reject(ReasonTryLater, "")
	}
	o.metrics.ObserveOutcome("cancelled", "draft")
	return []Reply{BookingCancelled{}}
}

// cancelBooking unwinds a confirmed booking in a fixed order: calendar event,
// slot, ledger row. Under FailClosed a calendar failure aborts before
// anything is touched.
func (o *Orchestrator) cancelBooking(ctx context.Context, b Booking) []Reply {
	log := o.logger.With("user_id", b.UserID, "staff_id", b.StaffID, "date", b.Date, "time", b.Time,
		"booking_id", b.ID.String(), "event_id", b.EventID)

	if _, err := o.removeEvent(ctx, b.Date, b.Time, b.StaffID); err != nil {
		if o.policy == FailClosed {
			log.Warn("booking: cancel aborted, calendar event not removed", "error", err)
			return o.reject(ReasonTryLater, "")
		}
		log.Error("booking: calendar event left behind on cancel", "error", err)
	}
	o.release(ctx, log, b.StaffID, b.Slot())
	if err := o.ledger.DeleteByUser(ctx, b.UserID); err != nil {
		log.Error("booking: ledger row left behind on cancel", "error", err)
	}
	if err := o.convs.Clear(ctx, b.UserID); err != nil {
		log.Warn("booking: failed to clear conversation", "error", err)
	}

	log.Info("booking: cancelled")
	o.metrics.ObserveOutcome("cancelled", "booking")
	if o.notifier != nil {
		if err := o.notifier.BookingCancelled(ctx, b); err != nil {
			log.Warn("booking: cancellation notice failed", "error", err)
		}
	}
	return []Reply{BookingCancelled{Booking: &b}}
}

// CancelBooking cancels userID's confirmed booking on behalf of the salon.
func (o *Orchestrator) CancelBooking(ctx context.Context, userID string) (*Booking, error) {
	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := o.ledger.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	for _, r := range o.cancelBooking(ctx, *b) {
		if _, ok := r.(BookingRejected); ok {
			return nil, fmt.Errorf("booking: cancel %s: %w", userID, ErrCancelAborted)
		}
	}
	return b, nil
}

func (o *Orchestrator) query(ctx context.Context, userID string) []Reply {
	b, err := o.ledger.GetByUser(ctx, userID)
	if err != nil {
		o.logger.Error("booking: failed to load booking", "user_id", userID, "error", err)
		return o.reject(ReasonTryLater, "")
	}
	if b == nil {
		return []Reply{NoBooking{}}
	}
	return []Reply{BookingSummary{Booking: *b}}
}

func (o *Orchestrator) release(ctx context.Context, log *logging.Logger, staffID string, slot slots.Key) {
	if err := o.slots.Release(ctx, staffID, slot); err != nil {
		log.Error("booking: failed to release slot", "error", err)
	}
}

func (o *Orchestrator) hasConflict(ctx context.Context, date, t string) (bool, error) {
	start := time.Now()
	conflict, err := o.cal.HasConflict(ctx, date, t)
	o.metrics.ObserveCalendar("has_conflict", err, time.Since(start).Seconds())
	return conflict, err
}

func (o *Orchestrator) addEvent(ctx context.Context, b Booking) (string, error) {
	start := time.Now()
	id, err := o.cal.AddEvent(ctx, calendar.Appointment{
		UserID:    b.UserID,
		StaffID:   b.StaffID,
		StaffName: b.StaffName,
		Category:  b.Category,
		Service:   b.Service,
		Date:      b.Date,
		Time:      b.Time,
	})
	o.metrics.ObserveCalendar("add_event", err, time.Since(start).Seconds())
	return id, err
}

func (o *Orchestrator) removeEvent(ctx context.Context, date, t, staffID string) (bool, error) {
	start := time.Now()
	found, err := o.cal.RemoveEvent(ctx, date, t, staffID)
	o.metrics.ObserveCalendar("remove_event", err, time.Since(start).Seconds())
	return found, err
}

// invalid rejects the input and repeats the current prompt. Nothing is written.
func (o *Orchestrator) invalid(ctx context.Context, state *conversation.State, detail string) []Reply {
	return append(o.reject(ReasonInvalidInput, detail), o.prompt(ctx, state)...)
}

// storeFailure handles a failed conversation write. A vanished conversation
// (expired between read and write) is restarted.
func (o *Orchestrator) storeFailure(ctx context.Context, state *conversation.State, err error) []Reply {
	if errors.Is(err, conversation.ErrInvalidStep) || errors.Is(err, conversation.ErrStepMismatch) {
		o.logger.Warn("booking: conversation out of step, restarting",
			"user_id", state.UserID, "step", state.Step.String(), "error", err)
		if _, serr := o.convs.Start(ctx, state.UserID); serr != nil {
			o.logger.Error("booking: failed to restart conversation", "user_id", state.UserID, "error", serr)
			return o.reject(ReasonTryLater, "")
		}
		return append(o.reject(ReasonInvalidInput, "conversation restarted"), o.servicePrompt(""))
	}
	o.logger.Error("booking: failed to save conversation", "user_id", state.UserID, "error", err)
	return o.reject(ReasonTryLater, "")
}

func (o *Orchestrator) reject(reason, detail string) []Reply {
	o.metrics.ObserveOutcome("rejected", reason)
	return []Reply{BookingRejected{Reason: reason, Detail: detail}}
}

func (o *Orchestrator) prompt(ctx context.Context, state *conversation.State) []Reply {
	switch state.Step {
	case conversation.AwaitingService:
		return []Reply{o.servicePrompt(state.Draft.Category)}
	case conversation.AwaitingDate:
		return []Reply{o.datePrompt(state.Draft.Service)}
	case conversation.AwaitingTime:
		return []Reply{o.timePrompt(state.Draft.Date, 0)}
	case conversation.AwaitingStaff:
		slot := slots.NewKey(state.Draft.Date, state.Draft.Time)
		available, err := o.slots.ListAvailableStaff(ctx, o.dir.StaffIDs(), slot)
		if err != nil || len(available) == 0 {
			return nil
		}
		return []Reply{PromptForStaff{Date: slot.Date, Time: slot.Time, Staff: o.dir.StaffList(available)}}
	default:
		return []Reply{Help{}}
	}
}

func (o *Orchestrator) servicePrompt(category string) PromptForService {
	p := PromptForService{Category: category, Categories: o.dir.CategoryNames()}
	if c, ok := o.dir.Category(category); ok {
		p.Services = append([]string(nil), c.Services...)
	} else {
		p.Category = ""
		p.Services = o.dir.Services()
	}
	return p
}

func (o *Orchestrator) datePrompt(service string) PromptForDate {
	first, last := o.hours.Window(o.now())
	return PromptForDate{Service: service, Min: first, Max: last}
}

func (o *Orchestrator) timePrompt(date string, page int) PromptForTime {
	options, more := salon.Paginate(o.hours.OpenTimes(date, o.now()), page, o.perPage)
	if len(options) == 0 && page > 0 {
		page = 0
		options, more = salon.Paginate(o.hours.OpenTimes(date, o.now()), 0, o.perPage)
	}
	return PromptForTime{Date: date, Options: options, Page: page, HasMore: more}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
