package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends e-mail through AWS SES v2.
type SESSender struct {
	client    SESAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}

	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8Content(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body:    body,
			},
		},
		EmailTags: tags(msg),
	}

	log := s.logger.With("to", msg.To, "kind", msg.Kind, "booking_id", msg.BookingID)
	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Error("notify: SES request failed", "error", err)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	log.Info("notify: front desk notice sent", "provider", "ses", "message_id", aws.ToString(output.MessageId))
	return nil
}

// tags maps the notice kind and booking id onto SES message tags.
func tags(msg EmailMessage) []types.MessageTag {
	var out []types.MessageTag
	if msg.Kind != "" {
		out = append(out, types.MessageTag{Name: aws.String("kind"), Value: aws.String(msg.Kind)})
	}
	if msg.BookingID != "" {
		out = append(out, types.MessageTag{Name: aws.String("booking_id"), Value: aws.String(msg.BookingID)})
	}
	return out
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
