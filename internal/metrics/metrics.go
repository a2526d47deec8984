package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	InboundMessages   *prometheus.CounterVec
	OutboundMessages  *prometheus.CounterVec
	AIRequests        *prometheus.CounterVec
	AILatency         *prometheus.HistogramVec
	TransactionsSaved *prometheus.CounterVec
	MediaDownloads    *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Total webhook deliveries received by outcome.",
			}, []string{"outcome"}),
			InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_messages_total",
				Help:      "Total inbound WhatsApp messages processed by content type.",
			}, []string{"type"}),
			OutboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_messages_total",
				Help:      "Total outbound WhatsApp sends by type and status.",
			}, []string{"type", "status"}),
			AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_requests_total",
				Help:      "Total AI API requests by operation and outcome.",
			}, []string{"operation", "status"}),
			AILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_request_duration_seconds",
				Help:      "Latency distribution for AI API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation", "status"}),
			TransactionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_saved_total",
				Help:      "Total financial transactions persisted by type.",
			}, []string{"type"}),
			MediaDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "media_downloads_total",
				Help:      "Total encrypted media downloads by method and outcome.",
			}, []string{"method", "status"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.WebhookEvents,
			metricsInstance.InboundMessages,
			metricsInstance.OutboundMessages,
			metricsInstance.AIRequests,
			metricsInstance.AILatency,
			metricsInstance.TransactionsSaved,
			metricsInstance.MediaDownloads,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
