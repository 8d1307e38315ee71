package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func sampleBooking() booking.Booking {
	return booking.Booking{
		ID:        uuid.MustParse("7f1c2f9a-3b1e-4c55-9d7e-1a2b3c4d5e6f"),
		UserID:    "U123",
		StaffID:   "amy",
		StaffName: "Amy <Lead>",
		Category:  "Manicure",
		Service:   "Gel Manicure",
		Date:      "2024-06-01",
		Time:      "10:00",
	}
}

func TestServiceBookingConfirmed(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, ServiceConfig{Recipient: "desk@example.com", SalonName: "Polish"}, logging.Discard())

	require.NoError(t, svc.BookingConfirmed(context.Background(), sampleBooking()))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "desk@example.com", msg.To)
	assert.Equal(t, "New booking - 2024-06-01 10:00 Amy <Lead>", msg.Subject)
	assert.Contains(t, msg.Body, "Service: Gel Manicure")
	assert.Contains(t, msg.Body, "LINE user: U123")
	assert.Contains(t, msg.HTML, "Amy &lt;Lead&gt;")
	assert.NotContains(t, msg.HTML, "Amy <Lead>")
	assert.Equal(t, KindBookingConfirmed, msg.Kind)
	assert.Equal(t, "7f1c2f9a-3b1e-4c55-9d7e-1a2b3c4d5e6f", msg.BookingID)
}

func TestServiceBookingCancelled(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewService(sender, ServiceConfig{Recipient: "desk@example.com"}, logging.Discard())

	err := svc.BookingCancelled(context.Background(), sampleBooking())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "Booking cancelled")
	assert.Equal(t, KindBookingCancelled, sender.sent[0].Kind)
}

func TestServiceSkipsWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, ServiceConfig{}, logging.Discard())
	require.NoError(t, svc.BookingConfirmed(context.Background(), sampleBooking()))
	assert.Empty(t, sender.sent)

	none := NewService(nil, ServiceConfig{Recipient: "desk@example.com"}, nil)
	assert.NoError(t, none.BookingCancelled(context.Background(), sampleBooking()))
}
