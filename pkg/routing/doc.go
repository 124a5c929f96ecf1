// Package routing implements the routing engine: it admits a request
// against the cheapest suitable provider and executes it, falling back
// once to a second provider when the first fails.
//
// # Request Lifecycle
//
//  1. Validate the request and check the tenant's ledger usage against its
//     monthly cap.
//  2. Walk the registry's ranked candidates. For each, select a model,
//     estimate the cost, reserve budget and consume rate capacity. The
//     first candidate passing all checks is the primary; the next one that
//     would pass is kept as fallback without being admitted.
//  3. Execute the primary under the provider's call timeout. On failure,
//     admit and execute the fallback exactly once, unless the caller's
//     context is already done.
//  4. On success commit the actual cost to the guardrails and the ledger.
//     On failure release every reservation and return an *Error.
//
// Admission is reserve-then-commit: budget is booked as pending in the same
// critical section that checks it, so concurrent requests cannot jointly
// overshoot a cap. A budget denial repeated across the candidates of one
// request publishes a single alert.
//
// # Errors
//
// Route returns *Error values tagged with a Kind. Use errors.Is with the
// package sentinels, or Classify for a metric label:
//
//	resp, err := engine.Route(ctx, req)
//	if errors.Is(err, routing.ErrCostCapExceeded) {
//		// tenant is out of budget
//	}
//
// When every candidate was refused by rate limits the error is
// AllProvidersRejected and also matches ErrRateLimitExceeded; RetryAfter
// holds the earliest window reset.
//
// # Stranded Requests
//
// An admitted request holds a budget reservation until it completes.
// Start runs a reaper that drops requests older than ActiveRequestTTL and
// releases their reservations.
package routing
