package ratelimit

import (
	"fmt"
	"time"
)

// Limits configures the windows enforced for one provider. A zero value
// disables that dimension.
type Limits struct {
	// RequestsPerMinute caps requests admitted per minute window.
	RequestsPerMinute int

	// TokensPerMinute caps estimated tokens admitted per minute window.
	TokensPerMinute int

	// RequestsPerDay caps requests admitted per day window.
	RequestsPerDay int

	// TokensPerDay caps estimated tokens admitted per day window.
	TokensPerDay int

	// MaxConcurrent caps simultaneous in-flight executions.
	MaxConcurrent int
}

func (l Limits) hasDaily() bool {
	return l.RequestsPerDay > 0 || l.TokensPerDay > 0
}

// Reason identifies which limit denied a request.
type Reason string

const (
	ReasonRequestRate      Reason = "request_rate_exceeded"
	ReasonTokenRate        Reason = "token_rate_exceeded"
	ReasonDailyRequests    Reason = "daily_request_limit_exceeded"
	ReasonDailyTokens      Reason = "daily_token_limit_exceeded"
	ReasonConcurrencyLimit Reason = "concurrency_limit_exceeded"
)

// Denial is returned when a provider's limits reject a request.
type Denial struct {
	// Provider is the limited provider.
	Provider string

	// Reason is the limit that was hit.
	Reason Reason

	// Limit is the configured ceiling.
	Limit int64

	// Current is the usage already counted in the window.
	Current int64

	// RetryAfter is the time until the window resets.
	RetryAfter time.Duration
}

func (d *Denial) Error() string {
	return fmt.Sprintf("provider %s: %s (%d/%d, retry after %s)",
		d.Provider, d.Reason, d.Current, d.Limit, d.RetryAfter.Round(time.Second))
}

// Usage is a point-in-time view of a provider's counters.
type Usage struct {
	Requests      int64     `json:"requests"`
	Tokens        int64     `json:"tokens"`
	WindowResetAt time.Time `json:"window_reset_at"`
	DailyRequests int64     `json:"daily_requests"`
	DailyTokens   int64     `json:"daily_tokens"`
	DayResetAt    time.Time `json:"day_reset_at,omitempty"`
	InFlight      int64     `json:"in_flight"`
}
