// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_processed_total",
			Help: "Total number of webhook events processed",
		},
		[]string{"event_kind"},
	)

	WebhookEventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_failed_total",
			Help: "Total number of webhook events that ended in an error reply",
		},
		[]string{"event_kind", "error_code"},
	)

	WebhookEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "webhook_event_duration_seconds",
			Help: "Duration of webhook event processing in seconds",
		},
		[]string{"event_kind"},
	)

	RecognitionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recognition_requests_total",
			Help: "Total OCR recognition attempts by outcome",
		},
		[]string{"outcome"},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_rejections_total",
			Help: "Total image events rejected by the monthly quota",
		},
	)

	ReplySendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reply_send_failures_total",
			Help: "Total replies that could not be delivered to the messaging API",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Number of in-flight split conversations",
		},
	)
)
