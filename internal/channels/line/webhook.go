package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
)

const maxWebhookBody = 1 << 20

// WebhookHandler verifies and decodes LINE webhook requests.
type WebhookHandler struct {
	channelSecret string
	onEvent       func(ctx context.Context, ev Event)
}

// NewWebhookHandler creates a webhook handler. onEvent is called for every
// event in a verified request, in order.
func NewWebhookHandler(channelSecret string, onEvent func(context.Context, Event)) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, onEvent: onEvent}
}

// ServeHTTP handles POST /webhooks/line.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.channelSecret, body, r.Header.Get("X-Line-Signature")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, ev := range req.Events {
		if h.onEvent != nil {
			h.onEvent(r.Context(), ev)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// VerifySignature checks X-Line-Signature: base64(HMAC-SHA256(secret, body)).
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
