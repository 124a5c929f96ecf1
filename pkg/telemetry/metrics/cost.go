package metrics

import (
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CostMetrics tracks spend and the guardrail decisions taken on it.
//
// Metrics:
//   - airouter_cost_total: cumulative spend in USD by tenant, provider, model
//   - airouter_cost_per_request: per-request cost distribution
//   - airouter_budget_decisions_total: guardrail evaluations by outcome
//   - airouter_cost_alerts_total: published alerts by type
//   - airouter_budget_utilization_percent: spend against the daily or monthly cap
type CostMetrics struct {
	costTotal      *prometheus.CounterVec
	costPerRequest *prometheus.HistogramVec
	decisions      *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	utilization    *prometheus.GaugeVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CostMetrics {
	cm := &CostMetrics{
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_total",
				Help:      "Total cost of AI requests in USD",
			},
			[]string{"tenant", "provider", "model"},
		),

		costPerRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_per_request",
				Help:      "Cost per request in USD",
				// $0.00001 to ~$10
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 11),
			},
			[]string{"provider", "model"},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "budget_decisions_total",
				Help:      "Total number of cost guardrail evaluations",
			},
			[]string{"tenant", "decision", "reason"},
		),

		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cost_alerts_total",
				Help:      "Total number of cost alerts published",
			},
			[]string{"type"},
		),

		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "budget_utilization_percent",
				Help:      "Tenant spend as a percentage of its budget cap",
			},
			[]string{"tenant", "period"},
		),
	}

	registry.MustRegister(
		cm.costTotal,
		cm.costPerRequest,
		cm.decisions,
		cm.alerts,
		cm.utilization,
	)

	return cm
}

// RecordRequestCost records the cost of a committed request. Zero and
// negative costs are ignored.
func (cm *CostMetrics) RecordRequestCost(tenant, provider, model string, costUSD float64) {
	if costUSD <= 0 {
		return
	}
	cm.costTotal.WithLabelValues(tenant, provider, model).Add(costUSD)
	cm.costPerRequest.WithLabelValues(provider, model).Observe(costUSD)
}

// RecordDecision counts a guardrail evaluation.
func (cm *CostMetrics) RecordDecision(tenant string, allowed bool, reason string) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	if reason == "" {
		reason = "none"
	}
	cm.decisions.WithLabelValues(tenant, decision, reason).Inc()
}

// RecordAlert counts a published alert.
func (cm *CostMetrics) RecordAlert(alertType string) {
	cm.alerts.WithLabelValues(alertType).Inc()
}

// SetUtilization sets budget utilization for a tenant and period.
func (cm *CostMetrics) SetUtilization(tenant, period string, percent float64) {
	cm.utilization.WithLabelValues(tenant, period).Set(percent)
}
