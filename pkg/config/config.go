package config

import "time"

// Config is the root configuration structure for the AI router.
// It contains the HTTP server, provider catalogue, routing, health
// monitoring, budget, ledger and telemetry sections.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Providers contains the provider catalogue. Keys are provider ids
	// (e.g., "mistral-edge", "openai-gpt4").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Routing contains routing engine settings.
	Routing RoutingConfig `yaml:"routing"`

	// Health contains background health monitor settings.
	Health HealthConfig `yaml:"health"`

	// Budgets contains per-tenant cost guardrail settings.
	Budgets BudgetsConfig `yaml:"budgets"`

	// Ledger selects the usage ledger backend.
	Ledger LedgerConfig `yaml:"ledger"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// It must exceed two provider call timeouts (primary plus fallback),
	// each covering every retry attempt and its backoff.
	// Default: 200s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of a routing request body.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS controls cross-origin access for browser dashboards.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig holds cross-origin settings. An empty AllowedOrigins list
// disables CORS handling.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 300
	MaxAge int `yaml:"max_age"`
}

// ProviderConfig describes one AI provider.
type ProviderConfig struct {
	// Name is the display name.
	Name string `yaml:"name"`

	// Kind is "edge" (self-hosted) or "cloud" (hosted, metered).
	Kind string `yaml:"kind"`

	// Enabled controls whether the provider takes part in routing.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// HealthPath is an optional probe path appended to the base URL.
	HealthPath string `yaml:"health_path"`

	// Models lists the models offered by the provider, in preference order.
	Models []ModelConfig `yaml:"models"`

	// RateLimits holds the per-provider request and token ceilings.
	RateLimits RateLimitsConfig `yaml:"rate_limits"`

	// Costs holds provider-wide rates used when a model carries none,
	// plus per-use surcharges.
	Costs CostTableConfig `yaml:"costs"`

	// Capabilities lists the provider-wide capabilities.
	Capabilities CapabilitiesConfig `yaml:"capabilities"`

	// Connection holds the transport settings.
	Connection ConnectionConfig `yaml:"connection"`
}

// ModelConfig describes one model of a provider.
type ModelConfig struct {
	ID              string   `yaml:"id"`
	ContextWindow   int      `yaml:"context_window"`
	InputCostPer1K  float64  `yaml:"input_cost_per_1k"`
	OutputCostPer1K float64  `yaml:"output_cost_per_1k"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Capabilities    []string `yaml:"capabilities"`
}

// RateLimitsConfig holds per-provider rate ceilings. Zero means unlimited.
type RateLimitsConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
	TokensPerDay      int `yaml:"tokens_per_day"`
}

// CostTableConfig holds provider-wide pricing.
type CostTableConfig struct {
	InputPer1K      float64 `yaml:"input_per_1k"`
	OutputPer1K     float64 `yaml:"output_per_1k"`
	ImageAnalysis   float64 `yaml:"image_analysis"`
	FunctionCalling float64 `yaml:"function_calling"`
}

// CapabilitiesConfig lists provider-wide capabilities.
type CapabilitiesConfig struct {
	FunctionCalling bool     `yaml:"function_calling"`
	Vision          bool     `yaml:"vision"`
	CodeInterpreter bool     `yaml:"code_interpreter"`
	Streaming       bool     `yaml:"streaming"`
	Embeddings      bool     `yaml:"embeddings"`
	Languages       []string `yaml:"languages"`
	MaxConcurrent   int      `yaml:"max_concurrent"`
}

// ConnectionConfig holds the transport settings for a provider.
type ConnectionConfig struct {
	// BaseURL is the provider endpoint root.
	BaseURL string `yaml:"base_url"`

	// CompletionPath is appended to BaseURL for execution calls.
	// Default: "/v1/generate"
	CompletionPath string `yaml:"completion_path"`

	// APIKey is the credential. Prefer APIKeyEnv over inline keys.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable holding the credential.
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds a single execution call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// RetryAttempts is the number of transport retries per call.
	// Default: 2
	RetryAttempts int `yaml:"retry_attempts"`

	// Headers are sent with every call.
	Headers map[string]string `yaml:"headers"`
}

// RoutingConfig contains routing engine settings.
type RoutingConfig struct {
	// PreferEdge orders edge providers ahead of cloud providers.
	// Default: true
	PreferEdge *bool `yaml:"prefer_edge"`

	// DefaultMaxTokens is used when a request sets no max_tokens.
	// Default: 1024
	DefaultMaxTokens int `yaml:"default_max_tokens"`

	// CharsPerToken drives prompt token estimation.
	// Default: 4
	CharsPerToken int `yaml:"chars_per_token"`

	// ActiveRequestTTL is the age after which a stranded active request
	// is reaped.
	// Default: 10m
	ActiveRequestTTL time.Duration `yaml:"active_request_ttl"`

	// ReaperInterval is how often the reaper sweeps.
	// Default: 1m
	ReaperInterval time.Duration `yaml:"reaper_interval"`

	// FallbackEnabled allows the single fallback attempt.
	// Default: true
	FallbackEnabled *bool `yaml:"fallback_enabled"`
}

// HealthConfig contains health monitor settings.
type HealthConfig struct {
	// Interval between health cycles.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// ProbeTimeout bounds a single probe.
	// Default: 5s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// DegradedErrorRate is the percentage of failed executions above which
	// a reachable provider is reported degraded.
	// Default: 50
	DegradedErrorRate float64 `yaml:"degraded_error_rate"`

	// OutcomeWindow is the number of recent executions kept per provider.
	// Default: 100
	OutcomeWindow int `yaml:"outcome_window"`
}

// BudgetsConfig contains cost guardrail settings.
type BudgetsConfig struct {
	// Currency is informational and used in alert messages.
	// Default: "EUR"
	Currency string `yaml:"currency"`

	// Defaults apply to tenants without an explicit entry.
	Defaults CostLimitsConfig `yaml:"defaults"`

	// Tenants holds per-tenant overrides keyed by tenant id.
	Tenants map[string]CostLimitsConfig `yaml:"tenants"`

	// HistorySize caps the usage history ring buffer.
	// Default: 10000
	HistorySize int `yaml:"history_size"`

	// AlertRetention is how long alerts are kept in memory.
	// Default: 24h
	AlertRetention time.Duration `yaml:"alert_retention"`

	// MaxAlerts caps the alerts kept in memory; the oldest go first.
	// Default: 1000
	MaxAlerts int `yaml:"max_alerts"`

	// AlertCleanupInterval is how often expired alerts are dropped.
	// Default: 1h
	AlertCleanupInterval time.Duration `yaml:"alert_cleanup_interval"`

	// TenantsFile is an optional YAML file of tenant limits that is
	// watched and reloaded on change.
	TenantsFile string `yaml:"tenants_file"`

	// Rollover schedules the daily and monthly accumulator resets.
	Rollover RolloverConfig `yaml:"rollover"`
}

// CostLimitsConfig holds the budget of one tenant.
type CostLimitsConfig struct {
	DailyLimit        float64                 `yaml:"daily_limit"`
	MonthlyLimit      float64                 `yaml:"monthly_limit"`
	PerRequestLimit   float64                 `yaml:"per_request_limit"`
	WarningThresholds WarningThresholdsConfig `yaml:"warning_thresholds"`
	EmergencyStop     EmergencyStopConfig     `yaml:"emergency_stop"`
}

// WarningThresholdsConfig holds warning percentages of each cap.
type WarningThresholdsConfig struct {
	Daily   float64 `yaml:"daily"`
	Monthly float64 `yaml:"monthly"`
}

// EmergencyStopConfig holds the hard monthly ceiling.
type EmergencyStopConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// RolloverConfig holds cron schedules for accumulator resets.
type RolloverConfig struct {
	// Enabled turns the scheduler on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// DailySchedule is a standard cron expression.
	// Default: "0 0 * * *"
	DailySchedule string `yaml:"daily_schedule"`

	// MonthlySchedule is a standard cron expression.
	// Default: "0 0 1 * *"
	MonthlySchedule string `yaml:"monthly_schedule"`

	// Timezone for both schedules.
	// Default: "UTC"
	Timezone string `yaml:"timezone"`
}

// LedgerConfig selects the usage ledger backend.
type LedgerConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite holds SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres holds PostgreSQL backend settings.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite ledger settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout for lock contention.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig holds PostgreSQL ledger settings.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the scrape endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "airouter"
	Namespace string `yaml:"namespace"`

	// Subsystem is inserted between namespace and metric name.
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets for latency histograms, in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// MaxTenantCardinality caps distinct tenant label values; extra
	// tenants are reported as "other".
	// Default: 1000
	MaxTenantCardinality int `yaml:"max_tenant_cardinality"`
}

// BoolValue dereferences an optional flag, returning def when unset.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Bool returns a pointer to b, for optional YAML flags.
func Bool(b bool) *bool {
	return &b
}
