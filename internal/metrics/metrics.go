package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by payment verification, webhooks and reconciliation
const (
	OutcomePaid        = "paid"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
	OutcomeIgnored     = "ignored"
	OutcomeUnverified  = "unverified"
	OutcomeAlreadyPaid = "already_paid"
	OutcomeDuplicate   = "duplicate"
)

var (
	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_bookings_created_total",
		Help: "Bookings persisted, by initial status",
	}, []string{"status"})

	PaymentVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_payment_verifications_total",
		Help: "Capture verifications, by entry point and outcome",
	}, []string{"source", "outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_webhook_events_total",
		Help: "PayPal webhook deliveries, by outcome",
	}, []string{"outcome"})

	HookFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_post_commit_hook_failures_total",
		Help: "Best-effort booking hooks that failed",
	}, []string{"hook"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seminar_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	MessagesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"subject"})

	MessagesProcessingFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_messages_processing_failed_total",
		Help: "Total number of messages processing failures",
	}, []string{"subject"})

	MessagesProcessingDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "seminar_messages_processing_duration_seconds",
		Help:       "Duration of message processing in seconds",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"subject"})
)
