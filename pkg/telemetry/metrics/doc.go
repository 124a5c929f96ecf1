// Package metrics provides Prometheus metrics for the AI router.
//
// # Metrics Categories
//
//   - Request metrics: route calls, latency, tokens, error kinds, fallbacks
//     and in-flight requests
//   - Provider metrics: health, health check latency, execution latency,
//     execution errors and rate limit denials
//   - Cost metrics: spend, guardrail decisions, alerts and budget utilization
//
// # Usage
//
//	registry := prometheus.NewRegistry()
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, registry)
//
//	engine := routing.New(registry, limiter, guardrails, adapters,
//		routing.WithMetrics(collector))
//	monitor := providers.NewMonitor(registry, monitorCfg,
//		providers.WithHealthMetrics(collector))
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// Provider and model labels come from configuration and are bounded. Tenant
// labels come from requests, so the collector admits at most
// MaxTenantCardinality distinct tenants and reports the rest as "other".
//
// When metrics are disabled in configuration every recording method is a
// no-op, but the metrics are still registered so the endpoint stays valid.
package metrics
