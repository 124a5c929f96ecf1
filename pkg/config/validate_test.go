package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	return NewBuilder().
		WithProvider("edge", ProviderConfig{
			Kind:       "edge",
			Connection: ConnectionConfig{BaseURL: "http://localhost:8000"},
			Models:     []ModelConfig{{ID: "m", ContextWindow: 4096}},
		}).
		Build()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "bad provider kind",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.Kind = "hybrid"
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.kind",
		},
		{
			name: "missing base url",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.Connection.BaseURL = ""
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.connection.base_url",
		},
		{
			name: "relative base url",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.Connection.BaseURL = "localhost"
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.connection.base_url",
		},
		{
			name: "no models",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.Models = nil
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.models",
		},
		{
			name: "duplicate model",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.Models = append(p.Models, ModelConfig{ID: "m", ContextWindow: 1})
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.models[1].id",
		},
		{
			name: "negative rate limit",
			mutate: func(c *Config) {
				p := c.Providers["edge"]
				p.RateLimits.TokensPerMinute = -1
				c.Providers["edge"] = p
			},
			wantField: "providers.edge.rate_limits",
		},
		{
			name:      "probe timeout above interval",
			mutate:    func(c *Config) { c.Health.ProbeTimeout = c.Health.Interval * 2 },
			wantField: "health.probe_timeout",
		},
		{
			name:      "daily above monthly",
			mutate:    func(c *Config) { c.Budgets.Defaults.DailyLimit = 5000 },
			wantField: "budgets.defaults.daily_limit",
		},
		{
			name:      "bad cron",
			mutate:    func(c *Config) { c.Budgets.Rollover.DailySchedule = "every day" },
			wantField: "budgets.rollover.daily_schedule",
		},
		{
			name:      "bad timezone",
			mutate:    func(c *Config) { c.Budgets.Rollover.Timezone = "Mars/Olympus" },
			wantField: "budgets.rollover.timezone",
		},
		{
			name:      "unknown ledger",
			mutate:    func(c *Config) { c.Ledger.Backend = "redis" },
			wantField: "ledger.backend",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Ledger.Backend = "postgres"
				c.Ledger.Postgres.Database = "usage"
			},
			wantField: "ledger.postgres.host",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") {
		t.Errorf("multi error = %q", got)
	}
}
