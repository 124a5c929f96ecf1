package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

// Kind tags a routing failure.
type Kind string

// Error kinds.
const (
	KindValidation           Kind = "ValidationError"
	KindCostCapExceeded      Kind = "CostCapExceeded"
	KindNoSuitableProvider   Kind = "NoSuitableProvider"
	KindAllProvidersRejected Kind = "AllProvidersRejected"
	KindProviderExecution    Kind = "ProviderExecutionError"
	KindRateLimitExceeded    Kind = "RateLimitExceeded"
)

// Sentinels for errors.Is. A routing error matches the sentinel of its
// kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrCostCapExceeded      = &Error{Kind: KindCostCapExceeded}
	ErrNoSuitableProvider   = &Error{Kind: KindNoSuitableProvider}
	ErrAllProvidersRejected = &Error{Kind: KindAllProvidersRejected}
	ErrProviderExecution    = &Error{Kind: KindProviderExecution}
	ErrRateLimitExceeded    = &Error{Kind: KindRateLimitExceeded}
)

// Error is the single error type returned by Engine.Route.
type Error struct {
	Kind    Kind
	Message string

	// Err is the underlying cause, if any.
	Err error

	// Rejections lists why each candidate was skipped during selection.
	Rejections []Rejection

	// Attempts lists failed executions, primary first.
	Attempts []Attempt

	// RetryAfter is set when the failure is due to rate limits.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind. An AllProvidersRejected error whose
// candidates were all refused by rate limits also matches
// ErrRateLimitExceeded.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == KindRateLimitExceeded && e.Kind == KindAllProvidersRejected {
		return onlyRateLimited(e.Rejections)
	}
	return t.Kind == e.Kind
}

// onlyRateLimited reports whether at least one candidate was refused by
// admission control and every such refusal was a rate limit.
func onlyRateLimited(rs []Rejection) bool {
	n := 0
	for _, r := range rs {
		switch r.Reason {
		case RejectBudget, RejectMaxCostLimit:
			return false
		case RejectRateLimit:
			n++
		}
	}
	return n > 0
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a routing error, or "" for other errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Error classifications, used as low-cardinality metric labels.
const (
	ClassCostCap       = "cost_cap"
	ClassNoProviders   = "no_providers"
	ClassTimeout       = "timeout"
	ClassRateLimit     = "rate_limit"
	ClassValidation    = "validation"
	ClassProviderError = "provider_error"
	ClassUnknown       = "unknown"
)

// Classify maps an error returned by Route to a classification.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var re *Error
	if !errors.As(err, &re) {
		if errors.Is(err, context.DeadlineExceeded) || providers.IsTimeout(err) {
			return ClassTimeout
		}
		return ClassUnknown
	}

	switch re.Kind {
	case KindValidation:
		return ClassValidation
	case KindCostCapExceeded:
		return ClassCostCap
	case KindNoSuitableProvider:
		return ClassNoProviders
	case KindRateLimitExceeded:
		return ClassRateLimit
	case KindAllProvidersRejected:
		return classifyRejections(re.Rejections)
	case KindProviderExecution:
		return classifyExecution(re.Err)
	}
	return ClassUnknown
}

// classifyRejections reports rate_limit when only rate limits refused the
// candidates and cost_cap when any budget or cost ceiling did.
func classifyRejections(rs []Rejection) string {
	if onlyRateLimited(rs) {
		return ClassRateLimit
	}
	for _, r := range rs {
		if r.Reason == RejectBudget || r.Reason == RejectMaxCostLimit {
			return ClassCostCap
		}
	}
	return ClassNoProviders
}

func classifyExecution(err error) string {
	switch {
	case err == nil:
		return ClassProviderError
	case providers.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case providers.IsRateLimited(err):
		return ClassRateLimit
	}
	return ClassProviderError
}

// executionErrorType labels a single adapter failure for provider metrics.
func executionErrorType(err error) string {
	var (
		authErr  *providers.AuthError
		parseErr *providers.ParseError
	)
	switch {
	case providers.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case providers.IsRateLimited(err):
		return "rate_limit"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "server_error"
}
