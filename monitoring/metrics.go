package monitoring

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Inbound webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Settlement evaluations by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	gatewayRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paymongo_request_duration_seconds",
			Help:    "Gateway request durations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"method", "outcome"},
	)

	emailFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_email_failures_total",
			Help: "Swallowed email dispatch failures by kind",
		},
		[]string{"kind"},
	)
)

func TrackWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func TrackSettlement(trigger fmt.Stringer, result string) {
	settlements.WithLabelValues(trigger.String(), result).Inc()
}

func ObserveGatewayRequest(method, outcome string, d time.Duration) {
	gatewayRequests.WithLabelValues(method, outcome).Observe(d.Seconds())
}

func TrackEmailFailure(kind string) {
	emailFailures.WithLabelValues(kind).Inc()
}

// Serve exposes /metrics on its own listener so scraping never shares a
// port with the application surface.
func Serve(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}
