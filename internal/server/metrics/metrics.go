// Package metrics exposes prometheus collectors for the reconciliation
// engine. All methods are nil-safe so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Occurrences closed, by kind
	Claimed *prometheus.CounterVec

	// Occurrences whose claim unit rolled back, by kind
	ClaimFailures *prometheus.CounterVec

	ReconcileLatency *prometheus.HistogramVec

	// Per-attendee rating applications and their retries
	RatingIncrements prometheus.Counter
	IncrementRetries prometheus.Counter
	SkippedAttendees prometheus.Counter

	// Registration attempts by kind and result
	Registrations *prometheus.CounterVec

	// Reset code operations by op (issue, validate, purge) and result
	ResetCodes *prometheus.CounterVec

	NotificationsDropped   prometheus.Counter
	NotificationsDelivered *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Claimed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthack_occurrences_claimed_total",
			Help: "Occurrences transitioned from active to closed",
		}, []string{"kind"}),

		ClaimFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthack_claim_failures_total",
			Help: "Occurrence claims rolled back and left for the next trigger",
		}, []string{"kind"}),

		ReconcileLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sporthack_reconcile_duration_seconds",
			Help:    "Duration of one ClaimDue call",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),

		RatingIncrements: f.NewCounter(prometheus.CounterOpts{
			Name: "sporthack_rating_increments_total",
			Help: "Attendees credited with a completed training",
		}),

		IncrementRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "sporthack_rating_increment_retries_total",
			Help: "Retries of a single attendee increment after a transient failure",
		}),

		SkippedAttendees: f.NewCounter(prometheus.CounterOpts{
			Name: "sporthack_rating_skipped_attendees_total",
			Help: "Attendees without a user or section membership at completion time",
		}),

		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthack_registrations_total",
			Help: "Registration attempts by occurrence kind and result",
		}, []string{"kind", "result"}),

		ResetCodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthack_reset_codes_total",
			Help: "Reset code operations by op and result",
		}, []string{"op", "result"}),

		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "sporthack_notifications_dropped_total",
			Help: "Notifications discarded because the dispatch queue was full",
		}),

		NotificationsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sporthack_notifications_delivered_total",
			Help: "Notification deliveries by sink and result",
		}, []string{"sink", "result"}),
	}
}

func (m *Metrics) IncClaimed(kind string, n int) {
	if m != nil && n > 0 {
		m.Claimed.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) IncClaimFailure(kind string) {
	if m != nil {
		m.ClaimFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveReconcile(kind string, d time.Duration) {
	if m != nil {
		m.ReconcileLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func (m *Metrics) IncRatingIncrement() {
	if m != nil {
		m.RatingIncrements.Inc()
	}
}

func (m *Metrics) IncIncrementRetry() {
	if m != nil {
		m.IncrementRetries.Inc()
	}
}

func (m *Metrics) IncSkippedAttendee() {
	if m != nil {
		m.SkippedAttendees.Inc()
	}
}

func (m *Metrics) IncRegistration(kind, result string) {
	if m != nil {
		m.Registrations.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) IncResetCode(op, result string) {
	if m != nil {
		m.ResetCodes.WithLabelValues(op, result).Inc()
	}
}

func (m *Metrics) IncNotificationDropped() {
	if m != nil {
		m.NotificationsDropped.Inc()
	}
}

func (m *Metrics) IncNotificationDelivered(sink, result string) {
	if m != nil {
		m.NotificationsDelivered.WithLabelValues(sink, result).Inc()
	}
}
