package metrics

import (
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks routed requests.
//
// Metrics:
//   - airouter_requests_total: route calls by provider, model, status
//   - airouter_request_duration_seconds: end-to-end route latency
//   - airouter_request_tokens_total: tokens consumed by direction
//   - airouter_route_errors_total: failed route calls by classification
//   - airouter_fallbacks_total: primary to fallback switches
//   - airouter_active_requests: in-flight route calls
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	routeErrors     *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	active          prometheus.Gauge
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of routed AI requests",
			},
			[]string{"provider", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of routed AI requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens consumed",
			},
			[]string{"provider", "model", "type"},
		),

		routeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "route_errors_total",
				Help:      "Total number of failed route calls by error kind",
			},
			[]string{"kind"},
		),

		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fallbacks_total",
				Help:      "Total number of fallback executions",
			},
			[]string{"from", "to"},
		),

		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_requests",
				Help:      "Number of route calls in flight",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
		rm.routeErrors,
		rm.fallbacks,
		rm.active,
	)

	return rm
}

// RecordRequest records a route call outcome and its duration.
func (rm *RequestMetrics) RecordRequest(provider, model, status string, duration time.Duration) {
	if provider == "" {
		provider = "none"
	}
	if model == "" {
		model = "unknown"
	}
	rm.requestsTotal.WithLabelValues(provider, model, status).Inc()
	rm.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens adds input and output tokens.
func (rm *RequestMetrics) RecordTokens(provider, model string, tokensIn, tokensOut int) {
	if tokensIn > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		rm.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(tokensOut))
	}
}

// RecordError counts a failed route call.
func (rm *RequestMetrics) RecordError(kind string) {
	rm.routeErrors.WithLabelValues(kind).Inc()
}

// RecordFallback counts a fallback execution.
func (rm *RequestMetrics) RecordFallback(from, to string) {
	rm.fallbacks.WithLabelValues(from, to).Inc()
}

// SetActive sets the in-flight gauge.
func (rm *RequestMetrics) SetActive(n int) {
	rm.active.Set(float64(n))
}
