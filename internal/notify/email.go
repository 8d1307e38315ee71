package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

const defaultFromName = "Salon Booking Assistant"

// Notice kinds, used to tag outgoing mail so the front desk can filter it.
const (
	KindBookingConfirmed = "booking_confirmed"
	KindBookingCancelled = "booking_cancelled"
)

// EmailSender delivers one front-desk notice.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a front-desk notice. Kind and BookingID are optional and
// end up as provider tags, not in the visible mail.
type EmailMessage struct {
	To        string
	ToName    string
	Subject   string
	Body      string
	HTML      string
	Kind      string
	BookingID string
}

type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host points the client at a fake API in tests.
	Host string
}

// NewSendGridSender returns nil without an API key so callers can fall back
// to another provider.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		req.Method = "POST"
		client = &sendgrid.Client{Request: req}
	}
	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		html,
	)
	if msg.Kind != "" {
		message.AddCategories(msg.Kind)
	}
	if msg.BookingID != "" && len(message.Personalizations) > 0 {
		message.Personalizations[0].SetCustomArg("booking_id", msg.BookingID)
	}

	log := s.logger.With("to", msg.To, "kind", msg.Kind, "booking_id", msg.BookingID)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		log.Error("notify: sendgrid request failed", "error", err)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		log.Error("notify: sendgrid rejected notice", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	log.Info("notify: front desk notice sent", "provider", "sendgrid", "status", response.StatusCode)
	return nil
}

// StubEmailSender only logs. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("notify: front desk notice not sent, no provider",
		"to", msg.To, "subject", msg.Subject, "kind", msg.Kind, "booking_id", msg.BookingID)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
