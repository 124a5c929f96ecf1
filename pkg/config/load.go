package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIROUTER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, resolves provider credentials from the
// environment variables named by api_key_env, and validates the result.
// Use LoadConfigWithEnvOverrides to also honour AIROUTER_* overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML, applies defaults and resolves credentials without
// validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	ResolveCredentials(&cfg)

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention AIROUTER_SECTION_FIELD (e.g., AIROUTER_SERVER_LISTEN_ADDRESS).
// Provider credentials can be overridden with AIROUTER_PROVIDERS_<ID>_API_KEY
// where <ID> is the upper-cased provider id with dashes replaced by
// underscores.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ResolveCredentials copies credentials from the environment variables named
// by each provider's api_key_env. Inline api_key values win.
func ResolveCredentials(cfg *Config) {
	for id, p := range cfg.Providers {
		if p.Connection.APIKey == "" && p.Connection.APIKeyEnv != "" {
			p.Connection.APIKey = os.Getenv(p.Connection.APIKeyEnv)
			cfg.Providers[id] = p
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := env("SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if d, ok := envDuration("SERVER_READ_TIMEOUT"); ok {
		cfg.Server.ReadTimeout = d
	}
	if d, ok := envDuration("SERVER_WRITE_TIMEOUT"); ok {
		cfg.Server.WriteTimeout = d
	}

	// Provider overrides
	for id, p := range cfg.Providers {
		key := providerEnvKey(id)
		if val := env("PROVIDERS_" + key + "_API_KEY"); val != "" {
			p.Connection.APIKey = val
		}
		if val := env("PROVIDERS_" + key + "_BASE_URL"); val != "" {
			p.Connection.BaseURL = val
		}
		if b, ok := envBool("PROVIDERS_" + key + "_ENABLED"); ok {
			p.Enabled = Bool(b)
		}
		cfg.Providers[id] = p
	}

	// Routing overrides
	if b, ok := envBool("ROUTING_PREFER_EDGE"); ok {
		cfg.Routing.PreferEdge = Bool(b)
	}
	if b, ok := envBool("ROUTING_FALLBACK_ENABLED"); ok {
		cfg.Routing.FallbackEnabled = Bool(b)
	}

	// Health overrides
	if d, ok := envDuration("HEALTH_INTERVAL"); ok {
		cfg.Health.Interval = d
	}

	// Budget overrides
	if f, ok := envFloat("BUDGETS_DAILY_LIMIT"); ok {
		cfg.Budgets.Defaults.DailyLimit = f
	}
	if f, ok := envFloat("BUDGETS_MONTHLY_LIMIT"); ok {
		cfg.Budgets.Defaults.MonthlyLimit = f
	}
	if f, ok := envFloat("BUDGETS_PER_REQUEST_LIMIT"); ok {
		cfg.Budgets.Defaults.PerRequestLimit = f
	}
	if val := env("BUDGETS_TENANTS_FILE"); val != "" {
		cfg.Budgets.TenantsFile = val
	}

	// Ledger overrides
	if val := env("LEDGER_BACKEND"); val != "" {
		cfg.Ledger.Backend = val
	}
	if val := env("LEDGER_SQLITE_PATH"); val != "" {
		cfg.Ledger.SQLite.Path = val
	}
	if val := env("LEDGER_POSTGRES_HOST"); val != "" {
		cfg.Ledger.Postgres.Host = val
	}
	if val := env("LEDGER_POSTGRES_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.Postgres.Port = port
		}
	}
	if val := env("LEDGER_POSTGRES_DATABASE"); val != "" {
		cfg.Ledger.Postgres.Database = val
	}
	if val := env("LEDGER_POSTGRES_USER"); val != "" {
		cfg.Ledger.Postgres.User = val
	}
	if val := env("LEDGER_POSTGRES_PASSWORD"); val != "" {
		cfg.Ledger.Postgres.Password = val
	}

	// Telemetry overrides
	if val := env("TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := env("TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if b, ok := envBool("TELEMETRY_METRICS_ENABLED"); ok {
		cfg.Telemetry.Metrics.Enabled = Bool(b)
	}
}

func providerEnvKey(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id))
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func envBool(name string) (bool, bool) {
	val := env(name)
	if val == "" {
		return false, false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return b, true
}

func envFloat(name string) (float64, bool) {
	val := env(name)
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envDuration(name string) (time.Duration, bool) {
	val := env(name)
	if val == "" {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return d, true
}
