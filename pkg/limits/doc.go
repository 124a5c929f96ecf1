// Package limits groups the admission controls that run before a request
// reaches a provider.
//
// The sub-packages are:
//
//   - ratelimit: per-provider request and token windows plus in-flight slots
//   - budget: per-tenant cost guardrails with reserve, commit and release
//   - ledger: durable usage records (memory, SQLite, PostgreSQL)
//   - rollover: cron driven daily and monthly counter resets
//
// The routing engine composes them; none of them depends on routing.
package limits
