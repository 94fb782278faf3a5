package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "dispatch_outcomes_total",
			Help:      "Handled webhook deliveries by outcome",
		},
		[]string{"kind", "reason"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "provider_duration_seconds",
			Help:      "Generative provider call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"result"},
	)

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by HTTP status",
		},
		[]string{"status"},
	)
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
