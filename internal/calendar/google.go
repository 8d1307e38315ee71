package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/salon-booking-assistant/internal/salon"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// SourceTag marks events written by this service.
	SourceTag = "salon-booking-assistant"

	propSource  = "source"
	propStaffID = "staff_id"
	propUserID  = "user_id"
)

// GoogleConfig selects the calendar and the slot geometry.
type GoogleConfig struct {
	CalendarID string
	Hours      salon.Hours
	SalonName  string
}

// GoogleGateway implements Gateway on Google Calendar v3.
type GoogleGateway struct {
	svc    *gcal.Service
	cfg    GoogleConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewGoogleGateway builds the client. Credentials and endpoint come from opts.
func NewGoogleGateway(ctx context.Context, cfg GoogleConfig, logger *logging.Logger, opts ...option.ClientOption) (*GoogleGateway, error) {
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar: calendar id required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarEventsScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google client: %w", err)
	}
	return &GoogleGateway{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("salon.internal.calendar"),
	}, nil
}

func (g *GoogleGateway) window(date, value string) (time.Time, time.Time, error) {
	start, err := g.cfg.Hours.Start(date, value)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(g.cfg.Hours.SlotDuration()), nil
}

func (g *GoogleGateway) HasConflict(ctx context.Context, date, value string) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.has_conflict")
	defer span.End()
	span.SetAttributes(attribute.String("salon.slot", date+" "+value))

	start, end, err := g.window(date, value)
	if err != nil {
		return false, err
	}
	events, err := g.svc.Events.List(g.cfg.CalendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: list events: %v", ErrUnavailable, err)
	}
	for _, ev := range events.Items {
		if ev.Status == "cancelled" || ev.Transparency == "transparent" {
			continue
		}
		if privateProp(ev, propSource) == SourceTag {
			continue
		}
		g.logger.Debug("calendar conflict", "date", date, "time", value, "event_id", ev.Id, "summary", ev.Summary)
		return true, nil
	}
	return false, nil
}

func (g *GoogleGateway) AddEvent(ctx context.Context, appt Appointment) (string, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.add_event")
	defer span.End()

	start, end, err := g.window(appt.Date, appt.Time)
	if err != nil {
		return "", &WriteError{Op: "insert", Err: err}
	}
	tz := g.cfg.Hours.Location.String()
	ev := &gcal.Event{
		Summary:     summary(appt),
		Description: description(g.cfg.SalonName, appt),
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				propSource:  SourceTag,
				propStaffID: appt.StaffID,
				propUserID:  appt.UserID,
			},
		},
	}
	created, err := g.svc.Events.Insert(g.cfg.CalendarID, ev).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return "", &WriteError{Op: "insert", Err: err}
	}
	return created.Id, nil
}

func (g *GoogleGateway) RemoveEvent(ctx context.Context, date, value, staffID string) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.remove_event")
	defer span.End()

	start, end, err := g.window(date, value)
	if err != nil {
		return false, &WriteError{Op: "delete", Err: err}
	}
	events, err := g.svc.Events.List(g.cfg.CalendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		PrivateExtendedProperty(propSource+"="+SourceTag, propStaffID+"="+staffID).
		Context(ctx).
		Do()
	if err != nil {
		span.RecordError(err)
		return false, &WriteError{Op: "lookup", Err: err}
	}
	found := false
	for _, ev := range events.Items {
		if ev.Status == "cancelled" {
			continue
		}
		if err := g.svc.Events.Delete(g.cfg.CalendarID, ev.Id).Context(ctx).Do(); err != nil {
			span.RecordError(err)
			return found, &WriteError{Op: "delete", Err: err}
		}
		found = true
	}
	return found, nil
}

func privateProp(ev *gcal.Event, key string) string {
	if ev.ExtendedProperties == nil {
		return ""
	}
	return ev.ExtendedProperties.Private[key]
}

func summary(appt Appointment) string {
	return fmt.Sprintf("%s - %s", appt.Service, appt.StaffName)
}

func description(salonName string, appt Appointment) string {
	return fmt.Sprintf("%s\nService: %s / %s\nStylist: %s\nCustomer: %s",
		salonName, appt.Category, appt.Service, appt.StaffName, appt.UserID)
}

var _ Gateway = (*GoogleGateway)(nil)
