package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("handler: %w", newError(KindCostCapExceeded, "tenant %s over cap", "acme"))

	if !errors.Is(err, ErrCostCapExceeded) {
		t.Error("wrapped cost cap error should match ErrCostCapExceeded")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("cost cap error should not match ErrValidation")
	}
	if KindOf(err) != KindCostCapExceeded {
		t.Errorf("KindOf() = %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}

func TestError_RateLimitedRejection(t *testing.T) {
	tests := []struct {
		name       string
		rejections []Rejection
		wantRate   bool
	}{
		{"rate limits only", []Rejection{{Reason: RejectRateLimit}, {Reason: RejectRateLimit}}, true},
		{"rate limit after missing model", []Rejection{{Reason: RejectNoModel}, {Reason: RejectRateLimit}}, true},
		{"budget involved", []Rejection{{Reason: RejectRateLimit}, {Reason: RejectBudget}}, false},
		{"max cost involved", []Rejection{{Reason: RejectMaxCostLimit}, {Reason: RejectRateLimit}}, false},
		{"no admission rejection", []Rejection{{Reason: RejectNoModel}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("route: %w", &Error{Kind: KindAllProvidersRejected, Rejections: tt.rejections})
			if !errors.Is(err, ErrAllProvidersRejected) {
				t.Error("should always match ErrAllProvidersRejected")
			}
			if got := errors.Is(err, ErrRateLimitExceeded); got != tt.wantRate {
				t.Errorf("errors.Is(ErrRateLimitExceeded) = %v, want %v", got, tt.wantRate)
			}
		})
	}

	if errors.Is(ErrRateLimitExceeded, ErrAllProvidersRejected) {
		t.Error("RateLimitExceeded should not match AllProvidersRejected")
	}
}

func TestError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Kind: KindProviderExecution, Message: "provider openai-gpt4 failed", Err: cause}

	want := "ProviderExecutionError: provider openai-gpt4 failed: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", ErrValidation, ClassValidation},
		{"cost cap", ErrCostCapExceeded, ClassCostCap},
		{"no provider", ErrNoSuitableProvider, ClassNoProviders},
		{"rate limit", ErrRateLimitExceeded, ClassRateLimit},
		{
			name: "rejected by budget",
			err:  &Error{Kind: KindAllProvidersRejected, Rejections: []Rejection{{Reason: RejectNoModel}, {Reason: RejectBudget}}},
			want: ClassCostCap,
		},
		{
			name: "rejected by rate limit and budget",
			err:  &Error{Kind: KindAllProvidersRejected, Rejections: []Rejection{{Reason: RejectRateLimit}, {Reason: RejectBudget}}},
			want: ClassCostCap,
		},
		{
			name: "rejected by rate limit only",
			err:  &Error{Kind: KindAllProvidersRejected, Rejections: []Rejection{{Reason: RejectNoModel}, {Reason: RejectRateLimit}}},
			want: ClassRateLimit,
		},
		{
			name: "execution timeout",
			err:  &Error{Kind: KindProviderExecution, Err: &providers.TimeoutError{Provider: "p", Timeout: time.Second}},
			want: ClassTimeout,
		},
		{
			name: "execution timeout in fallback",
			err: &Error{Kind: KindProviderExecution, Err: errors.Join(
				errors.New("boom"), &providers.TimeoutError{Provider: "p"})},
			want: ClassTimeout,
		},
		{
			name: "execution rate limited upstream",
			err:  &Error{Kind: KindProviderExecution, Err: &providers.RateLimitError{Provider: "p"}},
			want: ClassRateLimit,
		},
		{
			name: "execution error",
			err:  &Error{Kind: KindProviderExecution, Err: &providers.ProviderError{Provider: "p", StatusCode: 500}},
			want: ClassProviderError,
		},
		{"bare deadline", context.DeadlineExceeded, ClassTimeout},
		{"unknown", errors.New("something else"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&providers.TimeoutError{Provider: "p"}, "timeout"},
		{&providers.RateLimitError{Provider: "p"}, "rate_limit"},
		{&providers.AuthError{Provider: "p"}, "auth"},
		{&providers.ParseError{Provider: "p"}, "parse"},
		{context.Canceled, "canceled"},
		{&providers.ProviderError{Provider: "p", StatusCode: 503}, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := executionErrorType(tt.err); got != tt.want {
				t.Errorf("executionErrorType(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
