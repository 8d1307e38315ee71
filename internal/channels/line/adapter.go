// Package line is the LINE Messaging API channel: it verifies webhooks,
// turns events into booking actions and renders the replies.
package line

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/internal/events"
	"github.com/wolfman30/salon-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// Handler runs one user action through the booking conversation.
type Handler interface {
	Handle(ctx context.Context, userID string, action booking.Action) []booking.Reply
}

// Replier delivers rendered messages for a reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages []OutMessage) error
}

// Config configures the adapter.
type Config struct {
	ChannelSecret      string
	ChannelAccessToken string
	// APIBase overrides https://api.line.me.
	APIBase   string
	SalonName string
}

// Adapter connects LINE webhooks to the booking orchestrator.
type Adapter struct {
	handler  Handler
	replier  Replier
	renderer Renderer
	webhook  *WebhookHandler
	dedup    events.Deduper
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewAdapter creates a LINE adapter that replies through the Messaging API.
func NewAdapter(cfg Config, handler Handler, m *metrics.BookingMetrics, logger *logging.Logger) *Adapter {
	client := NewClient(cfg.ChannelAccessToken)
	if cfg.APIBase != "" {
		client.SetAPIBase(strings.TrimRight(cfg.APIBase, "/"))
	}
	return newAdapter(cfg, handler, client, m, logger)
}

func newAdapter(cfg Config, handler Handler, replier Replier, m *metrics.BookingMetrics, logger *logging.Logger) *Adapter {
	if handler == nil {
		panic("line: handler cannot be nil")
	}
	if replier == nil {
		panic("line: replier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{
		handler:  handler,
		replier:  replier,
		renderer: Renderer{SalonName: cfg.SalonName},
		metrics:  m,
		logger:   logger,
	}
	a.webhook = NewWebhookHandler(cfg.ChannelSecret, a.handleEvent)
	return a
}

// SetDeduper makes the adapter skip events whose webhookEventId was already handled.
func (a *Adapter) SetDeduper(d events.Deduper) {
	a.dedup = d
}

// HandleWebhook handles POST /webhooks/line.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.ServeHTTP(w, r)
}

func (a *Adapter) handleEvent(ctx context.Context, ev Event) {
	if ev.Mode == "standby" {
		a.metrics.ObserveWebhookEvent(ev.Type, "ignored")
		return
	}
	userID := ev.Source.UserID
	if userID == "" || ev.ReplyToken == "" {
		a.metrics.ObserveWebhookEvent(ev.Type, "ignored")
		return
	}
	if a.duplicate(ctx, ev) {
		a.metrics.ObserveWebhookEvent(ev.Type, "duplicate")
		return
	}

	action, ok := a.toAction(ev)
	if !ok {
		a.metrics.ObserveWebhookEvent(ev.Type, "ignored")
		return
	}

	replies := a.handler.Handle(ctx, userID, action)
	messages := a.renderer.Render(replies)
	if err := a.replier.Reply(ctx, ev.ReplyToken, messages); err != nil {
		a.logger.Error("line: failed to reply",
			"user_id", userID,
			"event_type", ev.Type,
			"action", action.Kind(),
			"error", err,
		)
		a.metrics.ObserveWebhookEvent(ev.Type, "reply_failed")
		return
	}
	a.metrics.ObserveWebhookEvent(ev.Type, "ok")
}

// duplicate claims the event id. Store errors let the event through.
func (a *Adapter) duplicate(ctx context.Context, ev Event) bool {
	if a.dedup == nil || ev.WebhookEventID == "" {
		return false
	}
	fresh, err := a.dedup.MarkProcessed(ctx, "line", ev.WebhookEventID)
	if err != nil {
		a.logger.Warn("line: dedup check failed", "event_id", ev.WebhookEventID, "error", err)
		return false
	}
	if !fresh {
		a.logger.Info("line: skipping redelivered event",
			"event_id", ev.WebhookEventID,
			"redelivery", ev.DeliveryContext.IsRedelivery,
		)
	}
	return !fresh
}

func (a *Adapter) toAction(ev Event) (booking.Action, bool) {
	switch ev.Type {
	case "message":
		if ev.Message == nil || ev.Message.Type != "text" {
			return booking.ShowHelp{}, true
		}
		text := strings.TrimSpace(ev.Message.Text)
		if text == "" {
			return booking.ShowHelp{}, true
		}
		return booking.Text{Body: text}, true
	case "postback":
		if ev.Postback == nil {
			return nil, false
		}
		action, err := DecodePostback(*ev.Postback)
		if err != nil {
			if !errors.Is(err, ErrUnknownPostback) {
				a.logger.Warn("line: bad postback", "data", ev.Postback.Data, "error", err)
			}
			return booking.ShowHelp{}, true
		}
		return action, true
	case "follow":
		return booking.ShowHelp{}, true
	default:
		return nil, false
	}
}
