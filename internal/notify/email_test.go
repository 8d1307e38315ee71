package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "desk@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "desk@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.fromName)
}

func TestSendGridSender_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "bot@example.com", Host: srv.URL}, nil)
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), EmailMessage{
		To: "desk@example.com", Subject: "New booking", Body: "hello",
		Kind: KindBookingConfirmed, BookingID: "b-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "New booking", payload["subject"])
	assert.Equal(t, []any{KindBookingConfirmed}, payload["categories"])
	personalizations, ok := payload["personalizations"].([]any)
	require.True(t, ok)
	require.Len(t, personalizations, 1)
	first := personalizations[0].(map[string]any)
	assert.Equal(t, map[string]any{"booking_id": "b-1"}, first["custom_args"])
}

func TestSendGridSender_UntaggedNotice(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "bot@example.com", Host: srv.URL}, nil)
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "desk@example.com", Subject: "x", Body: "y"}))
	assert.NotContains(t, payload, "categories")
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewSendGridSender(SendGridConfig{APIKey: "bad", FromEmail: "bot@example.com", Host: srv.URL}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "desk@example.com", Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "desk@example.com"})
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "bot@example.com", FromName: "Polish"}, nil)
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), EmailMessage{
		To: "desk@example.com", Subject: "New booking", Body: "text", HTML: "<p>html</p>",
		Kind: KindBookingCancelled, BookingID: "b-2",
	})
	require.NoError(t, err)
	require.NotNil(t, api.input)
	assert.Equal(t, "Polish <bot@example.com>", aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"desk@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "New booking", aws.ToString(api.input.Content.Simple.Subject.Data))
	assert.Equal(t, "text", aws.ToString(api.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(api.input.Content.Simple.Body.Html.Data))
	require.Len(t, api.input.EmailTags, 2)
	assert.Equal(t, "kind", aws.ToString(api.input.EmailTags[0].Name))
	assert.Equal(t, KindBookingCancelled, aws.ToString(api.input.EmailTags[0].Value))
	assert.Equal(t, "b-2", aws.ToString(api.input.EmailTags[1].Value))
}

func TestSESSender_Errors(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))

	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "bot@example.com"}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "desk@example.com", Subject: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
