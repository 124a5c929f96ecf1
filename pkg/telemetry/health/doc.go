// Package health provides liveness and readiness probes for the router.
//
// Liveness only reports that the process is up. Readiness runs the
// registered checks concurrently, each bounded by a timeout, and is ready
// when every check passes. The router registers two checks:
//
//   - providers: at least one enabled provider is not down
//   - ledger: the usage ledger answers a ping
//
// Usage:
//
//	checker := health.New(5 * time.Second)
//	checker.Register("providers", health.ProvidersCheck(registry))
//	checker.Register("ledger", health.PingCheck(usageLedger))
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
package health
