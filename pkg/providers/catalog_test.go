package providers

import (
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

func TestFromConfig(t *testing.T) {
	pc := config.ProviderConfig{
		Kind:       "cloud",
		HealthPath: "/status",
		Models: []config.ModelConfig{
			{ID: "gpt-4o", ContextWindow: 128000, InputCostPer1K: 2.5, OutputCostPer1K: 10, Capabilities: []string{"vision"}},
		},
		RateLimits: config.RateLimitsConfig{RequestsPerMinute: 500, TokensPerDay: 1000000},
		Costs:      config.CostTableConfig{ImageAnalysis: 0.01},
		Capabilities: config.CapabilitiesConfig{
			FunctionCalling: true,
			Vision:          true,
			Languages:       []string{"en"},
		},
		Connection: config.ConnectionConfig{BaseURL: "https://api.example.com", APIKey: "k", Timeout: time.Second},
	}

	p := FromConfig("openai-gpt4", pc)

	if p.ID != "openai-gpt4" || p.Name != "openai-gpt4" {
		t.Errorf("id/name = %s/%s", p.ID, p.Name)
	}
	if !p.Enabled {
		t.Error("expected enabled when unset")
	}
	if p.Kind != KindCloud || p.HealthPath != "/status" {
		t.Errorf("kind/health = %s/%s", p.Kind, p.HealthPath)
	}
	m, ok := p.Model("gpt-4o")
	if !ok {
		t.Fatal("model missing")
	}
	if !m.Has(CapVision) || !m.Has(CapFunctionCalling) {
		t.Errorf("expected inherited capabilities, got %v", m.Capabilities)
	}
	if len(m.Capabilities) != 2 {
		t.Errorf("expected no duplicate capabilities, got %v", m.Capabilities)
	}
	if p.RateLimits.TokensPerDay != 1000000 || p.Costs.ImageAnalysis != 0.01 {
		t.Errorf("limits/costs = %+v %+v", p.RateLimits, p.Costs)
	}
}

func TestRegisterAll(t *testing.T) {
	cfg := config.NewBuilder().
		WithProvider("edge", config.ProviderConfig{
			Kind:       "edge",
			Connection: config.ConnectionConfig{BaseURL: "http://localhost:8000"},
			Models:     []config.ModelConfig{{ID: "m", ContextWindow: 8192}},
		}).
		WithProvider("off", config.ProviderConfig{
			Kind:       "cloud",
			Enabled:    config.Bool(false),
			Connection: config.ConnectionConfig{BaseURL: "https://x.example.com"},
			Models:     []config.ModelConfig{{ID: "m", ContextWindow: 8192}},
		}).
		Build()

	r := NewRegistry(0)
	if err := RegisterAll(r, cfg.Providers); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if len(r.List()) != 2 || len(r.ListEnabled()) != 1 {
		t.Errorf("providers = %d, enabled = %d", len(r.List()), len(r.ListEnabled()))
	}
}
