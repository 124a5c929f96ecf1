package config

import "time"

// Builder provides a fluent API for assembling a Config in code. It starts
// from an empty configuration and Build applies defaults to whatever was
// left unset, so callers only name the values they care about.
type Builder struct {
	cfg Config
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{
		Providers: make(map[string]ProviderConfig),
		Budgets:   BudgetsConfig{Tenants: make(map[string]CostLimitsConfig)},
	}}
}

// Build applies defaults, resolves credentials and returns the Config.
// It does not validate; call Validate when the result comes from user input.
func (b *Builder) Build() *Config {
	cfg := b.cfg
	ApplyDefaults(&cfg)
	ResolveCredentials(&cfg)
	return &cfg
}

// WithListenAddress sets the HTTP listen address.
func (b *Builder) WithListenAddress(addr string) *Builder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithProvider adds or replaces a provider.
func (b *Builder) WithProvider(id string, p ProviderConfig) *Builder {
	b.cfg.Providers[id] = p
	return b
}

// WithPreferEdge sets edge preference for candidate ordering.
func (b *Builder) WithPreferEdge(prefer bool) *Builder {
	b.cfg.Routing.PreferEdge = Bool(prefer)
	return b
}

// WithFallback enables or disables the single fallback attempt.
func (b *Builder) WithFallback(enabled bool) *Builder {
	b.cfg.Routing.FallbackEnabled = Bool(enabled)
	return b
}

// WithActiveRequestTTL sets the stranded-request reaper TTL.
func (b *Builder) WithActiveRequestTTL(ttl time.Duration) *Builder {
	b.cfg.Routing.ActiveRequestTTL = ttl
	return b
}

// WithHealthInterval sets the health monitor interval.
func (b *Builder) WithHealthInterval(d time.Duration) *Builder {
	b.cfg.Health.Interval = d
	return b
}

// WithDefaultLimits sets the budget applied to unlisted tenants.
func (b *Builder) WithDefaultLimits(l CostLimitsConfig) *Builder {
	b.cfg.Budgets.Defaults = l
	return b
}

// WithTenantLimits sets the budget of one tenant. Unset fields inherit the
// defaults when Build runs.
func (b *Builder) WithTenantLimits(tenant string, l CostLimitsConfig) *Builder {
	b.cfg.Budgets.Tenants[tenant] = l
	return b
}

// WithLedger selects the ledger backend.
func (b *Builder) WithLedger(backend string) *Builder {
	b.cfg.Ledger.Backend = backend
	return b
}

// WithSQLiteLedger selects the SQLite ledger at path with the given driver.
func (b *Builder) WithSQLiteLedger(path, driver string) *Builder {
	b.cfg.Ledger.Backend = "sqlite"
	b.cfg.Ledger.SQLite.Path = path
	b.cfg.Ledger.SQLite.Driver = driver
	return b
}

// WithRollover enables or disables the rollover scheduler.
func (b *Builder) WithRollover(enabled bool) *Builder {
	b.cfg.Budgets.Rollover.Enabled = Bool(enabled)
	return b
}

// WithLogLevel sets the log level.
func (b *Builder) WithLogLevel(level string) *Builder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithMetrics enables or disables metrics collection.
func (b *Builder) WithMetrics(enabled bool) *Builder {
	b.cfg.Telemetry.Metrics.Enabled = Bool(enabled)
	return b
}
