package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// Webhook ingestion
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "webhook_events_total",
			Help:      "Webhook events by platform and result (processed, duplicate, skipped, failed)",
		},
		[]string{"platform", "result"},
	)

	WebhookRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "webhook_rejected_total",
			Help:      "Webhook deliveries rejected before processing",
		},
		[]string{"platform", "reason"},
	)

	// Outbound sends
	OutboundSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "outbound_sends_total",
			Help:      "Outbound send results by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	OutboundAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "outbound_attempts_total",
			Help:      "Individual platform API attempts including retries",
		},
		[]string{"platform"},
	)

	TokenInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inbox",
			Name:      "token_invalidations_total",
			Help:      "Platforms deactivated by the token manager",
		},
		[]string{"platform", "reason"},
	)

	// Realtime
	RealtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inbox",
		Name:      "realtime_subscribers",
		Help:      "Currently open realtime subscriptions",
	})

	RealtimeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inbox",
		Name:      "realtime_dropped_subscribers_total",
		Help:      "Subscriptions closed because their buffer overflowed",
	})
)

var registerOnce sync.Once

// HTTPMetrics holds configuration for HTTP metrics collection
type HTTPMetrics struct {
	ServiceName string
}

// NewHTTPMetrics creates a new HTTP metrics collector for a specific service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDurationHistogram)
	})
	return &HTTPMetrics{ServiceName: serviceName}
}

// Middleware records request count and latency per matched route
func (m *HTTPMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		statusStr := strconv.Itoa(status)

		RequestCounter.WithLabelValues(m.ServiceName, c.Method(), path, statusStr).Inc()
		RequestDurationHistogram.WithLabelValues(m.ServiceName, c.Method(), path, statusStr).
			Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns an HTTP handler exposing the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
