package ratelimit

import "github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"

// LimitsFor derives limiter ceilings from a provider's configuration.
func LimitsFor(p *providers.Provider) Limits {
	return Limits{
		RequestsPerMinute: p.RateLimits.RequestsPerMinute,
		TokensPerMinute:   p.RateLimits.TokensPerMinute,
		RequestsPerDay:    p.RateLimits.RequestsPerDay,
		TokensPerDay:      p.RateLimits.TokensPerDay,
		MaxConcurrent:     p.Capabilities.MaxConcurrent,
	}
}

// Configure sets the limits of every provider in ps.
func (l *Limiter) Configure(ps []*providers.Provider) {
	for _, p := range ps {
		l.SetLimits(p.ID, LimitsFor(p))
	}
}
