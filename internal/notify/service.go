// Package notify e-mails the salon about confirmed and cancelled bookings.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// Service implements booking.Notifier by e-mailing the front desk.
type Service struct {
	email     EmailSender
	recipient string
	salonName string
	logger    *logging.Logger
}

type ServiceConfig struct {
	Recipient string
	SalonName string
}

// NewService returns a notifier. With no sender or recipient every call is a
// logged no-op.
func NewService(email EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		recipient: cfg.Recipient,
		salonName: cfg.SalonName,
		logger:    logger,
	}
}

func (s *Service) BookingConfirmed(ctx context.Context, b booking.Booking) error {
	return s.send(ctx, KindBookingConfirmed, "New booking", "A new booking was made over LINE.", b)
}

func (s *Service) BookingCancelled(ctx context.Context, b booking.Booking) error {
	return s.send(ctx, KindBookingCancelled, "Booking cancelled", "A booking was cancelled.", b)
}

func (s *Service) send(ctx context.Context, kind, headline, intro string, b booking.Booking) error {
	if s.email == nil || s.recipient == "" {
		s.logger.Debug("notify: email not configured, skipping", "booking_id", b.ID)
		return nil
	}

	subject := fmt.Sprintf("%s - %s %s %s", headline, b.Date, b.Time, b.StaffName)
	msg := EmailMessage{
		To:      s.recipient,
		ToName:  s.salonName,
		Subject: subject,
		Body:    textBody(intro, b),
		HTML:    htmlBody(headline, intro, b),
		Kind:    kind,
	}
	if b.ID != uuid.Nil {
		msg.BookingID = b.ID.String()
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %q: %w", headline, err)
	}
	return nil
}

func rows(b booking.Booking) [][2]string {
	return [][2]string{
		{"Service", b.Service},
		{"Category", b.Category},
		{"Date", b.Date},
		{"Time", b.Time},
		{"Stylist", b.StaffName},
		{"LINE user", b.UserID},
		{"Booking ID", b.ID.String()},
	}
}

func textBody(intro string, b booking.Booking) string {
	out := intro + "\n\n"
	for _, r := range rows(b) {
		if r[1] == "" {
			continue
		}
		out += fmt.Sprintf("%s: %s\n", r[0], r[1])
	}
	return out
}

func htmlBody(headline, intro string, b booking.Booking) string {
	out := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2>%s</h2>
<p>%s</p>
<table style="border-collapse: collapse; margin: 20px 0;">
`, html.EscapeString(headline), html.EscapeString(intro))
	for _, r := range rows(b) {
		if r[1] == "" {
			continue
		}
		out += fmt.Sprintf(`  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
`, html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	return out + "</table>\n</div>"
}

var _ booking.Notifier = (*Service)(nil)
