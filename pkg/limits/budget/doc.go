// Package budget enforces per-tenant cost guardrails.
//
// # Rules
//
// Every request is evaluated against the tenant's CostLimits in a fixed
// order and the first violation wins: emergency stop, per-request cap,
// daily cap, monthly cap. Daily and monthly checks include the estimates
// of requests that were admitted but have not finished yet.
//
// # Admission
//
//	res, d := g.Reserve("acme", 0.42, "openai-gpt4", "gpt-4o")
//	if !d.Allowed {
//	    return d.Reason
//	}
//	// ... execute ...
//	g.Commit(res, budget.Usage{Cost: actual})
//
// Reserve books the estimate atomically with the check, so two concurrent
// requests cannot both fit into the last euro of a budget. A reservation
// that is not going to execute must be released.
//
// # Alerts
//
// Violations and crossed warning thresholds produce CostAlerts. Warnings
// fire once per tenant and period until the next reset. Subscribers run
// synchronously outside every lock; a panicking subscriber is logged and
// does not affect the others.
//
// Accumulators are reset by ResetDailyCosts and ResetMonthlyCosts, which
// the rollover scheduler calls on its cron schedule.
package budget
