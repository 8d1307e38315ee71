package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	actionsTotal    *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	calendarLatency *prometheus.HistogramVec
	webhookTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "actions_total",
			Help:      "Inbound user actions by kind",
		}, []string{"action"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Booking outcomes (confirmed, cancelled, rejected) by reason",
		}, []string{"outcome", "reason"}),
		calendarLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "calendar_latency_seconds",
			Help:      "Latency of external calendar calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "line",
			Name:      "webhook_events_total",
			Help:      "Inbound LINE webhook events",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.actionsTotal, m.outcomesTotal, m.calendarLatency, m.webhookTotal)
	return m
}

func (m *BookingMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

func (m *BookingMetrics) ObserveOutcome(outcome, reason string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *BookingMetrics) ObserveCalendar(op string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.calendarLatency.WithLabelValues(op, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveWebhookEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}
