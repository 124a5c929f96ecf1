// Package ratelimit enforces per-provider request and token limits.
//
// # Windows
//
// Limits are counted in fixed windows. The minute window (60s by default)
// starts at the first request after the previous window elapsed; the day
// window works the same way and is only tracked for providers that set a
// daily limit:
//
//	l := ratelimit.New()
//	l.SetLimits("openai-gpt4", ratelimit.Limits{
//	    RequestsPerMinute: 500,
//	    TokensPerMinute:   150000,
//	})
//	if err := l.CheckAndConsume("openai-gpt4", 1200); err != nil {
//	    var d *ratelimit.Denial
//	    errors.As(err, &d) // d.Reason == ratelimit.ReasonTokenRate
//	}
//
// Peek runs the same check without counting the request, which lets a
// caller look at a standby candidate without spending its quota.
//
// # Concurrency
//
// Acquire hands out execution slots when a provider sets MaxConcurrent.
// Every method is safe for concurrent use; each provider is guarded by its
// own mutex.
package ratelimit
