package metrics

import (
	"sync"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces tenant ids beyond the cardinality limit.
const otherLabel = "other"

// Collector owns every Prometheus metric of the router. It implements the
// metrics interfaces of the routing engine, the budget guardrails and the
// health monitor, so one instance is shared by all of them.
//
// Tenant ids are user-controlled, so tenant labels go through a
// CardinalityLimiter; tenants past the limit are folded into "other".
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	providerMetrics *ProviderMetrics
	costMetrics     *CostMetrics

	tenants *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with
// registry. A nil registry gets a fresh one.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	http.Handle("/metrics", collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}
	if cfg.MaxTenantCardinality <= 0 {
		cfg.MaxTenantCardinality = config.DefaultMaxTenantCardinality
	}

	return &Collector{
		enabled:         config.BoolValue(cfg.Enabled, true),
		registry:        registry,
		requestMetrics:  NewRequestMetrics(cfg, registry),
		providerMetrics: NewProviderMetrics(cfg, registry),
		costMetrics:     NewCostMetrics(cfg, registry),
		tenants:         NewCardinalityLimiter(cfg.MaxTenantCardinality),
	}
}

func (c *Collector) tenantLabel(tenant string) string {
	if c.tenants.Allow(tenant) {
		return tenant
	}
	return otherLabel
}

// RecordRequest records a finished route call. status is "success" or the
// failure classification.
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration, tokensIn, tokensOut int) {
	if !c.enabled {
		return
	}
	c.requestMetrics.RecordRequest(provider, model, status, duration)
	c.requestMetrics.RecordTokens(provider, model, tokensIn, tokensOut)
	if provider != "" {
		c.providerMetrics.RecordLatency(provider, model, duration.Seconds())
	}
}

// RecordRouteError counts a failed route call by error classification.
func (c *Collector) RecordRouteError(kind string) {
	if !c.enabled {
		return
	}
	c.requestMetrics.RecordError(kind)
}

// RecordFallback counts a switch from a failed primary to its fallback.
func (c *Collector) RecordFallback(from, to string) {
	if !c.enabled {
		return
	}
	c.requestMetrics.RecordFallback(from, to)
}

// SetActiveRequests sets the number of in-flight route calls.
func (c *Collector) SetActiveRequests(n int) {
	if !c.enabled {
		return
	}
	c.requestMetrics.SetActive(n)
}

// RecordProviderError counts a failed provider execution.
//
// Common error types:
//   - "rate_limit": provider answered 429
//   - "timeout": request deadline exceeded
//   - "auth": 401/403
//   - "server_error": 5xx or transport failure
//   - "parse": malformed answer
func (c *Collector) RecordProviderError(provider, errorType string) {
	if !c.enabled {
		return
	}
	c.providerMetrics.RecordError(provider, errorType)
}

// RecordRateLimitDenial counts a request refused by the provider limiter.
func (c *Collector) RecordRateLimitDenial(provider, reason string) {
	if !c.enabled {
		return
	}
	c.providerMetrics.RecordRateLimitDenial(provider, reason)
}

// UpdateProviderHealth records a health check result.
func (c *Collector) UpdateProviderHealth(provider string, status providers.HealthStatus, latency time.Duration) {
	if !c.enabled {
		return
	}
	c.providerMetrics.UpdateHealth(provider, status, latency)
}

// RecordUsage records the cost and tokens of a committed request.
func (c *Collector) RecordUsage(tenant, provider, model string, cost float64, tokensIn, tokensOut int) {
	if !c.enabled {
		return
	}
	c.costMetrics.RecordRequestCost(c.tenantLabel(tenant), provider, model, cost)
}

// RecordBudgetDecision counts guardrail evaluations. reason is empty for
// allowed requests.
func (c *Collector) RecordBudgetDecision(tenant string, allowed bool, reason string) {
	if !c.enabled {
		return
	}
	c.costMetrics.RecordDecision(c.tenantLabel(tenant), allowed, reason)
}

// RecordCostAlert counts published cost alerts by type.
func (c *Collector) RecordCostAlert(alertType string) {
	if !c.enabled {
		return
	}
	c.costMetrics.RecordAlert(alertType)
}

// SetBudgetUtilization sets a tenant's spend as a percentage of a cap.
func (c *Collector) SetBudgetUtilization(tenant, period string, percent float64) {
	if !c.enabled {
		return
	}
	c.costMetrics.SetUtilization(c.tenantLabel(tenant), period, percent)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct values admitted for a
// label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label: it was seen before
// or there is room for it.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
