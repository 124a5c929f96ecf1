package providers

import (
	"errors"
	"testing"
	"time"
)

func edge(id string) *Provider {
	return &Provider{
		ID:      id,
		Kind:    KindEdge,
		Enabled: true,
		Models:  []Model{{ID: id + "-m", ContextWindow: 8192}},
		Capabilities: Capabilities{
			Languages: []string{"es", "en"},
		},
	}
}

func cloud(id string, in, out float64, caps ...Capability) *Provider {
	return &Provider{
		ID:      id,
		Kind:    KindCloud,
		Enabled: true,
		Models: []Model{{
			ID:              id + "-m",
			ContextWindow:   128000,
			InputCostPer1K:  in,
			OutputCostPer1K: out,
			Capabilities:    caps,
		}},
		Connection: Connection{APIKey: "key"},
	}
}

func mustRegistry(t *testing.T, ps ...*Provider) *Registry {
	t.Helper()
	r := NewRegistry(0)
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%s) error = %v", p.ID, err)
		}
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		p       *Provider
		wantErr bool
	}{
		{"valid edge", edge("e"), false},
		{"nil", nil, true},
		{"missing id", &Provider{Kind: KindEdge, Models: []Model{{ID: "m"}}}, true},
		{"bad kind", &Provider{ID: "x", Kind: "hybrid", Models: []Model{{ID: "m"}}}, true},
		{"no models", &Provider{ID: "x", Kind: KindCloud}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry(0).Register(tt.p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidProvider) {
				t.Errorf("expected ErrInvalidProvider, got %v", err)
			}
		})
	}
}

func TestRegistry_RegisterUpserts(t *testing.T) {
	r := mustRegistry(t, cloud("a", 1, 2))
	if err := r.Register(cloud("a", 3, 4)); err != nil {
		t.Fatal(err)
	}

	if len(r.List()) != 1 {
		t.Fatalf("expected one provider after upsert, got %d", len(r.List()))
	}
	p, _ := r.Get("a")
	if p.Models[0].InputCostPer1K != 3 {
		t.Errorf("expected replaced provider, got input rate %v", p.Models[0].InputCostPer1K)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := mustRegistry(t, edge("e"))

	p, ok := r.Get("e")
	if !ok {
		t.Fatal("expected provider")
	}
	p.Models[0].ContextWindow = 1
	p.Enabled = false

	again, _ := r.Get("e")
	if again.Models[0].ContextWindow != 8192 || !again.Enabled {
		t.Error("mutating a returned provider must not affect the registry")
	}
}

func TestRegistry_Filters(t *testing.T) {
	disabled := cloud("off", 1, 1)
	disabled.Enabled = false
	r := mustRegistry(t, edge("e1"), cloud("c1", 1, 2, CapVision), cloud("c2", 1, 2), disabled)

	if got := ids(r.ListEnabled()); got != "c1,c2,e1" {
		t.Errorf("ListEnabled() = %s", got)
	}
	if got := ids(r.ListByKind(KindEdge)); got != "e1" {
		t.Errorf("ListByKind(edge) = %s", got)
	}
	if got := ids(r.ListByKind(KindCloud)); got != "c1,c2" {
		t.Errorf("ListByKind(cloud) = %s", got)
	}
	if got := ids(r.ListWithCapability(CapVision)); got != "c1" {
		t.Errorf("ListWithCapability(vision) = %s", got)
	}

	if err := r.SetEnabled("off", true); err != nil {
		t.Fatal(err)
	}
	if len(r.ListEnabled()) != 4 {
		t.Error("expected SetEnabled to bring the provider back")
	}
	if err := r.SetEnabled("ghost", true); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("SetEnabled(ghost) error = %v", err)
	}
}

func TestRegistry_Health(t *testing.T) {
	r := mustRegistry(t, edge("e"))

	if _, ok := r.Health("e"); ok {
		t.Fatal("expected no health before the first check")
	}

	r.SetHealth(ProviderHealth{ProviderID: "e", Status: StatusDown, LastCheck: time.Now()})
	h, ok := r.Health("e")
	if !ok || h.Status != StatusDown {
		t.Errorf("Health() = %+v, %v", h, ok)
	}
	if len(r.HealthSnapshot()) != 1 {
		t.Errorf("expected one snapshot entry")
	}
}

func TestRegistry_ErrorRate(t *testing.T) {
	r := NewRegistry(4)
	if err := r.Register(edge("e")); err != nil {
		t.Fatal(err)
	}

	if rate := r.ErrorRate("e"); rate != 0 {
		t.Fatalf("expected 0 with no outcomes, got %v", rate)
	}

	r.RecordOutcome("e", false)
	r.RecordOutcome("e", true)
	if rate := r.ErrorRate("e"); rate != 50 {
		t.Errorf("expected 50%%, got %v", rate)
	}

	// Fill the window with successes; the early failure is evicted.
	for i := 0; i < 4; i++ {
		r.RecordOutcome("e", true)
	}
	if rate := r.ErrorRate("e"); rate != 0 {
		t.Errorf("expected 0%% after eviction, got %v", rate)
	}
}

func ids(ps []*Provider) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ","
		}
		out += p.ID
	}
	return out
}
