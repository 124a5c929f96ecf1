package metrics

import (
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks provider health and execution.
//
// Metrics:
//   - airouter_provider_health: 1 healthy, 0.5 degraded, 0 down
//   - airouter_provider_health_check_seconds: health check latency
//   - airouter_provider_latency_seconds: execution latency
//   - airouter_provider_errors_total: execution errors by type
//   - airouter_rate_limit_denials_total: limiter refusals by reason
type ProviderMetrics struct {
	health         *prometheus.GaugeVec
	checkLatency   *prometheus.HistogramVec
	latency        *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	rateLimitDenys *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health",
				Help:      "Provider health (1 = healthy, 0.5 = degraded, 0 = down)",
			},
			[]string{"provider"},
		),

		checkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health_check_seconds",
				Help:      "Duration of provider health checks in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"provider"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Provider execution latency in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"provider", "model"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_errors_total",
				Help:      "Total number of provider execution errors",
			},
			[]string{"provider", "error_type"},
		),

		rateLimitDenys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rate_limit_denials_total",
				Help:      "Total number of requests refused by provider rate limits",
			},
			[]string{"provider", "reason"},
		),
	}

	registry.MustRegister(
		pm.health,
		pm.checkLatency,
		pm.latency,
		pm.errors,
		pm.rateLimitDenys,
	)

	return pm
}

// healthValue maps a status to the gauge value.
func healthValue(status providers.HealthStatus) float64 {
	switch status {
	case providers.StatusHealthy:
		return 1
	case providers.StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// UpdateHealth records a health check result.
func (pm *ProviderMetrics) UpdateHealth(provider string, status providers.HealthStatus, latency time.Duration) {
	pm.health.WithLabelValues(provider).Set(healthValue(status))
	pm.checkLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordLatency records execution latency.
func (pm *ProviderMetrics) RecordLatency(provider, model string, latencySeconds float64) {
	pm.latency.WithLabelValues(provider, model).Observe(latencySeconds)
}

// RecordError counts a provider execution error.
func (pm *ProviderMetrics) RecordError(provider, errorType string) {
	pm.errors.WithLabelValues(provider, errorType).Inc()
}

// RecordRateLimitDenial counts a limiter refusal.
func (pm *ProviderMetrics) RecordRateLimitDenial(provider, reason string) {
	pm.rateLimitDenys.WithLabelValues(provider, reason).Inc()
}
