package routing

import (
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/budget"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ratelimit"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

// Sensitivity classifies how sensitive a request's data is. High
// sensitivity requests prefer edge providers.
type Sensitivity string

// Sensitivity levels.
const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// AIRequest is a generation request submitted to the engine.
type AIRequest struct {
	TenantID string `json:"tenant_id" validate:"required,max=128"`
	Prompt   string `json:"prompt" validate:"required"`

	// Model pins a model id. It is honoured on providers that offer it.
	Model string `json:"model,omitempty" validate:"omitempty,max=128"`

	MaxTokens   int     `json:"max_tokens,omitempty" validate:"gte=0,lte=1000000"`
	Temperature float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`

	// MaxCostLimit caps the estimated cost of this request. Zero means no
	// cap beyond the tenant's budget.
	MaxCostLimit float64 `json:"max_cost_limit,omitempty" validate:"gte=0"`

	// ProviderHint moves a provider to the head of the candidate list.
	ProviderHint string `json:"provider_hint,omitempty"`

	Language    string      `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
	Sensitivity Sensitivity `json:"sensitivity,omitempty" validate:"omitempty,oneof=low medium high"`

	Capabilities  []providers.Capability `json:"capabilities,omitempty" validate:"dive,required"`
	Images        int                    `json:"images,omitempty" validate:"gte=0"`
	FunctionCalls int                    `json:"function_calls,omitempty" validate:"gte=0"`
}

// Tokens counts the tokens of a completed request.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// AIResponse is the result of a successful route.
type AIResponse struct {
	RequestID    string        `json:"request_id"`
	Content      string        `json:"content"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Tokens       Tokens        `json:"tokens"`
	Cost         float64       `json:"cost"`
	Latency      time.Duration `json:"latency"`
	FallbackUsed bool          `json:"fallback_used"`
}

// Reason codes explaining why a candidate was chosen.
const (
	ReasonHint      = "provider_hint"
	ReasonBestMatch = "best_match"
	ReasonFallback  = "fallback"
)

// Decision is a provider and model admitted for a request.
type Decision struct {
	Provider      *providers.Provider
	Model         *providers.Model
	EstimatedCost float64
	Reason        string

	// reservation is nil for a fallback that has not been admitted yet.
	reservation *budget.Reservation
}

// Rejection explains why a candidate was skipped during selection.
type Rejection struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`

	retryAfter time.Duration
}

// Rejection reasons.
const (
	RejectNoModel      = "no_model"
	RejectNoAdapter    = "no_adapter"
	RejectMaxCostLimit = "max_cost_limit"
	RejectBudget       = "budget_exceeded"
	RejectRateLimit    = "rate_limited"
)

// Attempt records one adapter execution.
type Attempt struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Error    string `json:"error"`
}

// ActiveRequest is an admitted request still executing.
type ActiveRequest struct {
	ID       string    `json:"id"`
	Tenant   string    `json:"tenant"`
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Start    time.Time `json:"start"`

	reservation *budget.Reservation
}

// ProviderStatus is an operator view of one provider.
type ProviderStatus struct {
	ID      string                   `json:"id"`
	Name    string                   `json:"name"`
	Kind    providers.Kind           `json:"kind"`
	Enabled bool                     `json:"enabled"`
	Models  []string                 `json:"models"`
	Health  providers.ProviderHealth `json:"health"`
	Usage   ratelimit.Usage          `json:"rate_usage"`
}
