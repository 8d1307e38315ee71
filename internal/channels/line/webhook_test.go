package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test_channel_secret"
	body := []byte(`{"destination":"U0","events":[]}`)
	validSig := sign(secret, body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid signature", secret, body, validSig, true},
		{"wrong signature", secret, body, sign("other", body), false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, validSig, false},
		{"not base64", secret, body, "%%%", false},
		{"tampered body", secret, []byte(`tampered`), validSig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.secret, tt.body, tt.signature)
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebhookHandler(t *testing.T) {
	secret := "secret"
	body := []byte(`{"destination":"U0","events":[
		{"type":"message","replyToken":"r1","source":{"type":"user","userId":"U1"},"message":{"id":"m1","type":"text","text":"預約服務"}},
		{"type":"postback","replyToken":"r2","source":{"type":"user","userId":"U1"},"postback":{"data":"action=date","params":{"date":"2024-06-01"}}}
	]}`)

	t.Run("valid request dispatches events in order", func(t *testing.T) {
		var got []Event
		h := NewWebhookHandler(secret, func(_ context.Context, ev Event) {
			got = append(got, ev)
		})
		req := httptest.NewRequest(http.MethodPost, "/webhooks/line", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", sign(secret, body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
		if got[0].Message == nil || got[0].Message.Text != "預約服務" {
			t.Errorf("unexpected first event: %+v", got[0])
		}
		if got[1].Postback == nil || got[1].Postback.Params["date"] != "2024-06-01" {
			t.Errorf("unexpected second event: %+v", got[1])
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		called := false
		h := NewWebhookHandler(secret, func(context.Context, Event) { called = true })
		req := httptest.NewRequest(http.MethodPost, "/webhooks/line", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", sign("wrong", body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if called {
			t.Error("handler called for unverified request")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		bad := []byte(`{"events":`)
		h := NewWebhookHandler(secret, nil)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/line", bytes.NewReader(bad))
		req.Header.Set("X-Line-Signature", sign(secret, bad))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("verification request with no events", func(t *testing.T) {
		empty := []byte(`{"destination":"U0","events":[]}`)
		h := NewWebhookHandler(secret, nil)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/line", bytes.NewReader(empty))
		req.Header.Set("X-Line-Signature", sign(secret, empty))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}
