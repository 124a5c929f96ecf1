// Package telemetry groups the router's observability packages.
//
// # Components
//
//   - logging: slog construction from configuration, with credential
//     redaction and request-scoped attributes
//   - metrics: Prometheus collector shared by the routing engine, the
//     cost guardrails and the provider health monitor
//   - health: liveness and readiness probes
//
// # Credential Protection
//
// Attributes whose key names a credential (api_key, authorization,
// password, secret, dsn and similar) are masked before they reach a sink,
// keeping only a short prefix: "sk-abc123456" becomes "sk-a***".
package telemetry
