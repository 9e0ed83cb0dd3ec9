// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_transitions_total",
			Help: "Committed onboarding status transitions",
		},
		[]string{"action", "to"},
	)

	TransitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_transitions_rejected_total",
			Help: "Rejected transition attempts by error code",
		},
		[]string{"action", "error_code"},
	)

	IntegrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_integration_failures_total",
			Help: "Best-effort side effects that failed",
		},
		[]string{"integration"},
	)

	IntegrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_integration_duration_seconds",
			Help: "Duration of calls to external providers",
		},
		[]string{"integration"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_webhook_events_total",
			Help: "E-signature webhook events by type and outcome",
		},
		[]string{"event", "outcome"},
	)

	BatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_batch_items_total",
			Help: "Bulk approval items by outcome",
		},
		[]string{"outcome"},
	)
)
