// Package server exposes the routing engine over HTTP.
//
// Routes:
//
//	POST /v1/route                      route an AIRequest, returns an AIResponse
//	GET  /v1/providers                  provider catalogue with health and rate usage
//	GET  /v1/active                     requests currently executing
//	GET  /v1/stats                      routing counters
//	GET  /v1/alerts                     retained cost alerts
//	GET  /v1/tenants/{tenant}/usage     daily and monthly spend against limits
//	GET  /v1/tenants/{tenant}/history   recent usage records
//	GET  /health/live, /health/ready    probes
//	GET  /metrics                       Prometheus exposition
//
// Routing failures are returned as {"error": {...}} with a status chosen by
// error kind: validation 400, cost cap 402, rate limited 429, no suitable
// provider 503 and provider execution 502. When every candidate was
// rejected the status follows the classification: 402 if a cost ceiling
// refused, 429 otherwise. Rate limit failures set Retry-After.
package server
