package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveAction("pick_staff")
	m.ObserveAction("pick_staff")
	m.ObserveOutcome("rejected", "slot conflicts")
	m.ObserveCalendar("has_conflict", nil, 0.05)
	m.ObserveCalendar("add_event", errors.New("boom"), 0.5)
	m.ObserveWebhookEvent("message", "handled")

	assert.Equal(t, 2.0, counterValue(t, reg, "salon_booking_actions_total", map[string]string{"action": "pick_staff"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "salon_booking_outcomes_total", map[string]string{"outcome": "rejected", "reason": "slot conflicts"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "salon_line_webhook_events_total", map[string]string{"event_type": "message"}))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "salon_booking_calendar_latency_seconds" {
			for _, metric := range mf.GetMetric() {
				samples += metric.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAction("book")
	m.ObserveOutcome("confirmed", "")
	m.ObserveCalendar("add_event", nil, 0.1)
	m.ObserveWebhookEvent("message", "handled")
}
