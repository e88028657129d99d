package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ParticipantsVerified prometheus.Counter
	ParticipantsRejected prometheus.Counter
	AllocationRetries    prometheus.Counter

	TokensIssued    prometheus.Counter
	TokensValidated *prometheus.CounterVec

	NoShowsLogged      prometheus.Counter
	NoShowEscalations  prometheus.Counter
	DistributionsTotal prometheus.Counter

	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed prometheus.Counter

	AuditEventsDropped prometheus.Counter

	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ParticipantsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_participants_verified_total",
			Help: "Total participants approved and assigned a number",
		}),
		ParticipantsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_participants_rejected_total",
			Help: "Total participant verification rejections",
		}),
		AllocationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_number_allocation_retries_total",
			Help: "Participant number allocation attempts that hit a collision",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_identity_tokens_issued_total",
			Help: "Total identity tokens issued",
		}),
		TokensValidated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodlink_identity_tokens_validated_total",
			Help: "Identity token validation attempts by outcome",
		}, []string{"outcome"}),
		NoShowsLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_no_shows_logged_total",
			Help: "Total no-show events recorded",
		}),
		NoShowEscalations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_no_show_escalations_total",
			Help: "No-show events at or above the escalation threshold",
		}),
		DistributionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_distributions_recorded_total",
			Help: "Total distribution records appended to the ledger",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodlink_notifications_sent_total",
			Help: "Notifications persisted by severity",
		}, []string{"severity"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_notifications_failed_total",
			Help: "Notification deliveries that failed and were skipped",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodlink_audit_events_dropped_total",
			Help: "Activity events dropped because the publisher buffer was full",
		}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodlink_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}
