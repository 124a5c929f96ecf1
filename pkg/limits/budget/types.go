package budget

import (
	"sync/atomic"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

// CostLimits is the budget of one tenant, in the configured currency.
// A zero limit disables that check.
type CostLimits struct {
	DailyLimit      float64 `json:"daily_limit"`
	MonthlyLimit    float64 `json:"monthly_limit"`
	PerRequestLimit float64 `json:"per_request_limit"`

	// DailyWarning and MonthlyWarning are percentages of the matching cap
	// at which a warning alert is raised.
	DailyWarning   float64 `json:"daily_warning"`
	MonthlyWarning float64 `json:"monthly_warning"`

	// EmergencyStop blocks every request once the monthly total reaches
	// EmergencyThreshold.
	EmergencyStop      bool    `json:"emergency_stop"`
	EmergencyThreshold float64 `json:"emergency_threshold"`
}

// LimitsFromConfig converts a configuration entry.
func LimitsFromConfig(c config.CostLimitsConfig) CostLimits {
	return CostLimits{
		DailyLimit:         c.DailyLimit,
		MonthlyLimit:       c.MonthlyLimit,
		PerRequestLimit:    c.PerRequestLimit,
		DailyWarning:       c.WarningThresholds.Daily,
		MonthlyWarning:     c.WarningThresholds.Monthly,
		EmergencyStop:      config.BoolValue(c.EmergencyStop.Enabled, false),
		EmergencyThreshold: c.EmergencyStop.Threshold,
	}
}

// TenantLimitsFromConfig converts the defaults and per-tenant overrides of
// a budgets section.
func TenantLimitsFromConfig(b config.BudgetsConfig) (CostLimits, map[string]CostLimits) {
	tenants := make(map[string]CostLimits, len(b.Tenants))
	for id, c := range b.Tenants {
		tenants[id] = LimitsFromConfig(c)
	}
	return LimitsFromConfig(b.Defaults), tenants
}

// Period is the accounting period an alert refers to.
type Period string

const (
	PeriodRequest Period = "request"
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// AlertType classifies a cost alert.
type AlertType string

const (
	AlertWarning       AlertType = "warning"
	AlertLimitExceeded AlertType = "limit_exceeded"
	AlertEmergencyStop AlertType = "emergency_stop"
)

// Severity of an alert.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func severityOf(t AlertType) Severity {
	switch t {
	case AlertEmergencyStop:
		return SeverityCritical
	case AlertLimitExceeded:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// CostAlert is published to subscribers whenever a guardrail trips or a
// warning threshold is crossed.
type CostAlert struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"tenant"`
	Type      AlertType `json:"type"`
	Period    Period    `json:"period,omitempty"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Current   float64   `json:"current"`
	Limit     float64   `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertHandler receives cost alerts.
type AlertHandler func(CostAlert)

// Decision is the outcome of a guardrail evaluation. When Allowed is false,
// Type, Period, Current and Limit describe the first violated rule.
type Decision struct {
	Allowed bool
	Type    AlertType
	Period  Period
	Reason  string
	Current float64
	Limit   float64

	// Warnings raised by this evaluation.
	Warnings []CostAlert
}

// Usage records the cost of one completed request.
type Usage struct {
	RequestID    string        `json:"request_id"`
	Tenant       string        `json:"tenant"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	TokensIn     int           `json:"tokens_in"`
	TokensOut    int           `json:"tokens_out"`
	Cost         float64       `json:"cost"`
	Latency      time.Duration `json:"latency"`
	FallbackUsed bool          `json:"fallback_used"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Reservation is an admitted estimate held against a tenant's budget until
// it is committed or released.
type Reservation struct {
	ID        string
	Tenant    string
	Provider  string
	Model     string
	Estimated float64
	CreatedAt time.Time

	closed atomic.Bool
}

// Closed reports whether the reservation was committed or released.
func (r *Reservation) Closed() bool {
	return r.closed.Load()
}

// TenantUsage is a snapshot of a tenant's accumulators.
type TenantUsage struct {
	Tenant         string     `json:"tenant"`
	Daily          float64    `json:"daily"`
	Monthly        float64    `json:"monthly"`
	Pending        float64    `json:"pending"`
	DailyPercent   float64    `json:"daily_percent"`
	MonthlyPercent float64    `json:"monthly_percent"`
	Limits         CostLimits `json:"limits"`
}

// HistoryFilter selects usage history entries. Zero fields match all.
type HistoryFilter struct {
	Tenant   string
	Provider string
	Since    time.Time
	Limit    int
}

func (f HistoryFilter) match(u *Usage) bool {
	if f.Tenant != "" && u.Tenant != f.Tenant {
		return false
	}
	if f.Provider != "" && u.Provider != f.Provider {
		return false
	}
	if !f.Since.IsZero() && u.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
