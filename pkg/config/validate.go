package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRouting(&cfg.Routing)...)
	errs = append(errs, validateHealth(&cfg.Health)...)
	errs = append(errs, validateBudgets(&cfg.Budgets)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must be non-negative"})
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		return append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
	}

	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := providers[id]
		prefix := "providers." + id

		if p.Kind != "edge" && p.Kind != "cloud" {
			errs = append(errs, FieldError{
				Field:   prefix + ".kind",
				Message: fmt.Sprintf("invalid kind %q (must be: edge, cloud)", p.Kind),
			})
		}

		if p.Connection.BaseURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".connection.base_url", Message: "base URL is required"})
		} else if u, err := url.Parse(p.Connection.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.base_url",
				Message: fmt.Sprintf("invalid URL %q", p.Connection.BaseURL),
			})
		}

		if p.HealthPath != "" && !strings.HasPrefix(p.HealthPath, "/") {
			errs = append(errs, FieldError{Field: prefix + ".health_path", Message: "health path must start with /"})
		}

		if p.Connection.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".connection.timeout", Message: "timeout must be positive"})
		}
		if p.Connection.RetryAttempts < 0 || p.Connection.RetryAttempts > 10 {
			errs = append(errs, FieldError{
				Field:   prefix + ".connection.retry_attempts",
				Message: "retry attempts must be between 0 and 10",
			})
		}

		if len(p.Models) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".models", Message: "at least one model is required"})
		}
		seen := make(map[string]bool, len(p.Models))
		for i, m := range p.Models {
			mprefix := fmt.Sprintf("%s.models[%d]", prefix, i)
			if m.ID == "" {
				errs = append(errs, FieldError{Field: mprefix + ".id", Message: "model id is required"})
			} else if seen[m.ID] {
				errs = append(errs, FieldError{Field: mprefix + ".id", Message: fmt.Sprintf("duplicate model id %q", m.ID)})
			}
			seen[m.ID] = true
			if m.ContextWindow <= 0 {
				errs = append(errs, FieldError{Field: mprefix + ".context_window", Message: "context window must be positive"})
			}
			if m.InputCostPer1K < 0 || m.OutputCostPer1K < 0 {
				errs = append(errs, FieldError{Field: mprefix, Message: "costs must be non-negative"})
			}
			if m.MaxOutputTokens < 0 {
				errs = append(errs, FieldError{Field: mprefix + ".max_output_tokens", Message: "max output tokens must be non-negative"})
			}
		}

		rl := p.RateLimits
		if rl.RequestsPerMinute < 0 || rl.TokensPerMinute < 0 || rl.RequestsPerDay < 0 || rl.TokensPerDay < 0 {
			errs = append(errs, FieldError{Field: prefix + ".rate_limits", Message: "rate limits must be non-negative"})
		}

		c := p.Costs
		if c.InputPer1K < 0 || c.OutputPer1K < 0 || c.ImageAnalysis < 0 || c.FunctionCalling < 0 {
			errs = append(errs, FieldError{Field: prefix + ".costs", Message: "costs must be non-negative"})
		}
	}

	return errs
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultMaxTokens <= 0 {
		errs = append(errs, FieldError{Field: "routing.default_max_tokens", Message: "default max tokens must be positive"})
	}
	if cfg.CharsPerToken <= 0 {
		errs = append(errs, FieldError{Field: "routing.chars_per_token", Message: "chars per token must be positive"})
	}
	if cfg.ActiveRequestTTL <= 0 {
		errs = append(errs, FieldError{Field: "routing.active_request_ttl", Message: "active request TTL must be positive"})
	}
	if cfg.ReaperInterval <= 0 {
		errs = append(errs, FieldError{Field: "routing.reaper_interval", Message: "reaper interval must be positive"})
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if cfg.Interval < time.Second {
		errs = append(errs, FieldError{Field: "health.interval", Message: "interval must be at least 1s"})
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, FieldError{Field: "health.probe_timeout", Message: "probe timeout must be positive"})
	}
	if cfg.ProbeTimeout > cfg.Interval {
		errs = append(errs, FieldError{Field: "health.probe_timeout", Message: "probe timeout must not exceed the interval"})
	}
	if cfg.DegradedErrorRate < 0 || cfg.DegradedErrorRate > 100 {
		errs = append(errs, FieldError{Field: "health.degraded_error_rate", Message: "degraded error rate must be between 0 and 100"})
	}
	if cfg.OutcomeWindow <= 0 {
		errs = append(errs, FieldError{Field: "health.outcome_window", Message: "outcome window must be positive"})
	}

	return errs
}

func validateBudgets(cfg *BudgetsConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateCostLimits("budgets.defaults", cfg.Defaults)...)

	tenants := make([]string, 0, len(cfg.Tenants))
	for t := range cfg.Tenants {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	for _, t := range tenants {
		errs = append(errs, validateCostLimits("budgets.tenants."+t, cfg.Tenants[t])...)
	}

	if cfg.HistorySize <= 0 {
		errs = append(errs, FieldError{Field: "budgets.history_size", Message: "history size must be positive"})
	}
	if cfg.MaxAlerts <= 0 {
		errs = append(errs, FieldError{Field: "budgets.max_alerts", Message: "max alerts must be positive"})
	}
	if cfg.AlertCleanupInterval <= 0 {
		errs = append(errs, FieldError{Field: "budgets.alert_cleanup_interval", Message: "alert cleanup interval must be positive"})
	}

	if BoolValue(cfg.Rollover.Enabled, DefaultRolloverEnabled) {
		if _, err := cron.ParseStandard(cfg.Rollover.DailySchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "budgets.rollover.daily_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if _, err := cron.ParseStandard(cfg.Rollover.MonthlySchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "budgets.rollover.monthly_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if _, err := time.LoadLocation(cfg.Rollover.Timezone); err != nil {
			errs = append(errs, FieldError{
				Field:   "budgets.rollover.timezone",
				Message: fmt.Sprintf("unknown timezone %q", cfg.Rollover.Timezone),
			})
		}
	}

	return errs
}

func validateCostLimits(prefix string, l CostLimitsConfig) []FieldError {
	var errs []FieldError

	if l.DailyLimit <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".daily_limit", Message: "daily limit must be positive"})
	}
	if l.MonthlyLimit <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".monthly_limit", Message: "monthly limit must be positive"})
	}
	if l.PerRequestLimit <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".per_request_limit", Message: "per-request limit must be positive"})
	}
	if l.DailyLimit > 0 && l.MonthlyLimit > 0 && l.DailyLimit > l.MonthlyLimit {
		errs = append(errs, FieldError{Field: prefix + ".daily_limit", Message: "daily limit exceeds monthly limit"})
	}
	for name, pct := range map[string]float64{"daily": l.WarningThresholds.Daily, "monthly": l.WarningThresholds.Monthly} {
		if pct <= 0 || pct > 100 {
			errs = append(errs, FieldError{
				Field:   prefix + ".warning_thresholds." + name,
				Message: "warning threshold must be in (0, 100]",
			})
		}
	}
	if BoolValue(l.EmergencyStop.Enabled, false) && l.EmergencyStop.Threshold <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".emergency_stop.threshold", Message: "threshold must be positive when enabled"})
	}

	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "ledger.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "ledger.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be: sqlite, sqlite3)", cfg.SQLite.Driver),
			})
		}
	case "postgres":
		if cfg.Postgres.Host == "" {
			errs = append(errs, FieldError{Field: "ledger.postgres.host", Message: "host is required"})
		}
		if cfg.Postgres.Database == "" {
			errs = append(errs, FieldError{Field: "ledger.postgres.database", Message: "database is required"})
		}
		if cfg.Postgres.Port <= 0 || cfg.Postgres.Port > 65535 {
			errs = append(errs, FieldError{Field: "ledger.postgres.port", Message: "port must be between 1 and 65535"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("invalid backend %q (must be: memory, sqlite, postgres)", cfg.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be: json, text)", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}
	if cfg.Metrics.MaxTenantCardinality <= 0 {
		errs = append(errs, FieldError{Field: "telemetry.metrics.max_tenant_cardinality", Message: "must be positive"})
	}

	return errs
}
