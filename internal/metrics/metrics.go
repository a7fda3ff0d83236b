package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	ticks           *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	remindersSent   *prometheus.CounterVec
	remindersFailed prometheus.Counter
	expirations     prometheus.Counter
	claims          *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_ticks_total",
				Help: "Scheduler ticks by outcome",
			},
			[]string{"result"},
		),
		tickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reminder_tick_duration_seconds",
				Help:    "Wall time of one scheduler tick",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 7),
			},
		),
		remindersSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_sent_total",
				Help: "Reminders delivered by horizon in days",
			},
			[]string{"horizon"},
		),
		remindersFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reminders_failed_total",
				Help: "Reminders that could not be delivered and will be retried",
			},
		),
		expirations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "subscriptions_expired_total",
				Help: "Subscriptions moved from active to expired",
			},
		),
		claims: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_claims_total",
				Help: "Payment claims by resulting status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveTick(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncReminderSent(horizon int) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(strconv.Itoa(horizon)).Inc()
}

func (m *Metrics) IncReminderFailed() {
	if m == nil {
		return
	}
	m.remindersFailed.Inc()
}

func (m *Metrics) IncExpired() {
	if m == nil {
		return
	}
	m.expirations.Inc()
}

func (m *Metrics) IncClaim(status string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(status).Inc()
}
