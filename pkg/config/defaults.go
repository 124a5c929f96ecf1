package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 200 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultCORSMaxAge      = 300

	// Provider defaults
	DefaultProviderKind           = "cloud"
	DefaultProviderTimeout        = 30 * time.Second
	DefaultProviderRetryAttempts  = 2
	DefaultProviderCompletionPath = "/v1/generate"

	// Routing defaults
	DefaultPreferEdge       = true
	DefaultMaxTokens        = 1024
	DefaultCharsPerToken    = 4
	DefaultActiveRequestTTL = 10 * time.Minute
	DefaultReaperInterval   = time.Minute
	DefaultFallbackEnabled  = true

	// Health defaults
	DefaultHealthInterval    = 30 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultDegradedErrorRate = 50.0
	DefaultOutcomeWindow     = 100

	// Budget defaults
	DefaultCurrency               = "EUR"
	DefaultDailyLimit             = 100.0
	DefaultMonthlyLimit           = 1000.0
	DefaultPerRequestLimit        = 10.0
	DefaultDailyWarningPercent    = 80.0
	DefaultMonthlyWarningPercent  = 85.0
	DefaultEmergencyStopEnabled   = true
	DefaultEmergencyStopThreshold = 1200.0
	DefaultHistorySize            = 10000
	DefaultAlertRetention         = 24 * time.Hour
	DefaultAlertCleanupInterval   = time.Hour
	DefaultMaxAlerts              = 1000

	// Rollover defaults
	DefaultRolloverEnabled = true
	DefaultDailySchedule   = "0 0 * * *"
	DefaultMonthlySchedule = "0 0 1 * *"
	DefaultTimezone        = "UTC"

	// Ledger defaults
	DefaultLedgerBackend        = "memory"
	DefaultSQLitePath           = "data/usage.db"
	DefaultSQLiteDriver         = "sqlite"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultPostgresPort         = 5432
	DefaultPostgresSSLMode      = "disable"
	DefaultPostgresMaxOpenConns = 10
	DefaultPostgresConnLifetime = 30 * time.Minute

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultMetricsEnabled       = true
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "airouter"
	DefaultMaxTenantCardinality = 1000
)

// DefaultRequestDurationBuckets are latency buckets in seconds, tuned for
// AI inference calls which range from sub-second edge answers to long
// cloud generations.
var DefaultRequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// DefaultCostLimits returns the budget applied to tenants without an
// explicit entry.
func DefaultCostLimits() CostLimitsConfig {
	return CostLimitsConfig{
		DailyLimit:      DefaultDailyLimit,
		MonthlyLimit:    DefaultMonthlyLimit,
		PerRequestLimit: DefaultPerRequestLimit,
		WarningThresholds: WarningThresholdsConfig{
			Daily:   DefaultDailyWarningPercent,
			Monthly: DefaultMonthlyWarningPercent,
		},
		EmergencyStop: EmergencyStopConfig{
			Enabled:   Bool(DefaultEmergencyStopEnabled),
			Threshold: DefaultEmergencyStopThreshold,
		},
	}
}

// ApplyDefaults fills every unset field of cfg with its default value.
// Tenant budgets inherit unset fields from budgets.defaults.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Provider defaults - applied to each provider
	for id, p := range cfg.Providers {
		if p.Name == "" {
			p.Name = id
		}
		if p.Kind == "" {
			p.Kind = DefaultProviderKind
		}
		if p.Enabled == nil {
			p.Enabled = Bool(true)
		}
		if p.Connection.Timeout == 0 {
			p.Connection.Timeout = DefaultProviderTimeout
		}
		if p.Connection.RetryAttempts == 0 {
			p.Connection.RetryAttempts = DefaultProviderRetryAttempts
		}
		if p.Connection.CompletionPath == "" {
			p.Connection.CompletionPath = DefaultProviderCompletionPath
		}
		cfg.Providers[id] = p
	}

	// Routing defaults
	if cfg.Routing.PreferEdge == nil {
		cfg.Routing.PreferEdge = Bool(DefaultPreferEdge)
	}
	if cfg.Routing.DefaultMaxTokens == 0 {
		cfg.Routing.DefaultMaxTokens = DefaultMaxTokens
	}
	if cfg.Routing.CharsPerToken == 0 {
		cfg.Routing.CharsPerToken = DefaultCharsPerToken
	}
	if cfg.Routing.ActiveRequestTTL == 0 {
		cfg.Routing.ActiveRequestTTL = DefaultActiveRequestTTL
	}
	if cfg.Routing.ReaperInterval == 0 {
		cfg.Routing.ReaperInterval = DefaultReaperInterval
	}
	if cfg.Routing.FallbackEnabled == nil {
		cfg.Routing.FallbackEnabled = Bool(DefaultFallbackEnabled)
	}

	// Health defaults
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = DefaultHealthInterval
	}
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Health.DegradedErrorRate == 0 {
		cfg.Health.DegradedErrorRate = DefaultDegradedErrorRate
	}
	if cfg.Health.OutcomeWindow == 0 {
		cfg.Health.OutcomeWindow = DefaultOutcomeWindow
	}

	// Budget defaults
	if cfg.Budgets.Currency == "" {
		cfg.Budgets.Currency = DefaultCurrency
	}
	cfg.Budgets.Defaults = mergeCostLimits(cfg.Budgets.Defaults, DefaultCostLimits())
	for tenant, limits := range cfg.Budgets.Tenants {
		cfg.Budgets.Tenants[tenant] = mergeCostLimits(limits, cfg.Budgets.Defaults)
	}
	if cfg.Budgets.HistorySize == 0 {
		cfg.Budgets.HistorySize = DefaultHistorySize
	}
	if cfg.Budgets.AlertRetention == 0 {
		cfg.Budgets.AlertRetention = DefaultAlertRetention
	}
	if cfg.Budgets.MaxAlerts == 0 {
		cfg.Budgets.MaxAlerts = DefaultMaxAlerts
	}
	if cfg.Budgets.AlertCleanupInterval == 0 {
		cfg.Budgets.AlertCleanupInterval = DefaultAlertCleanupInterval
	}
	if cfg.Budgets.Rollover.Enabled == nil {
		cfg.Budgets.Rollover.Enabled = Bool(DefaultRolloverEnabled)
	}
	if cfg.Budgets.Rollover.DailySchedule == "" {
		cfg.Budgets.Rollover.DailySchedule = DefaultDailySchedule
	}
	if cfg.Budgets.Rollover.MonthlySchedule == "" {
		cfg.Budgets.Rollover.MonthlySchedule = DefaultMonthlySchedule
	}
	if cfg.Budgets.Rollover.Timezone == "" {
		cfg.Budgets.Rollover.Timezone = DefaultTimezone
	}

	// Ledger defaults
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.SQLite.Path == "" {
		cfg.Ledger.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Ledger.SQLite.Driver == "" {
		cfg.Ledger.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Ledger.SQLite.BusyTimeout == 0 {
		cfg.Ledger.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Ledger.Postgres.Port == 0 {
		cfg.Ledger.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Ledger.Postgres.SSLMode == "" {
		cfg.Ledger.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Ledger.Postgres.MaxOpenConns == 0 {
		cfg.Ledger.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Ledger.Postgres.ConnMaxLifetime == 0 {
		cfg.Ledger.Postgres.ConnMaxLifetime = DefaultPostgresConnLifetime
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = Bool(DefaultMetricsEnabled)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = DefaultRequestDurationBuckets
	}
	if cfg.Telemetry.Metrics.MaxTenantCardinality == 0 {
		cfg.Telemetry.Metrics.MaxTenantCardinality = DefaultMaxTenantCardinality
	}
}

// mergeCostLimits fills the zero fields of l from base.
func mergeCostLimits(l, base CostLimitsConfig) CostLimitsConfig {
	if l.DailyLimit == 0 {
		l.DailyLimit = base.DailyLimit
	}
	if l.MonthlyLimit == 0 {
		l.MonthlyLimit = base.MonthlyLimit
	}
	if l.PerRequestLimit == 0 {
		l.PerRequestLimit = base.PerRequestLimit
	}
	if l.WarningThresholds.Daily == 0 {
		l.WarningThresholds.Daily = base.WarningThresholds.Daily
	}
	if l.WarningThresholds.Monthly == 0 {
		l.WarningThresholds.Monthly = base.WarningThresholds.Monthly
	}
	if l.EmergencyStop.Enabled == nil {
		l.EmergencyStop.Enabled = base.EmergencyStop.Enabled
	}
	if l.EmergencyStop.Threshold == 0 {
		l.EmergencyStop.Threshold = base.EmergencyStop.Threshold
	}
	return l
}
