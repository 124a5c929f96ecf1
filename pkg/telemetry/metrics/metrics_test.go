package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Namespace:              "test",
		Subsystem:              "metrics",
		RequestDurationBuckets: []float64{0.1, 0.5, 1.0, 5.0},
		MaxTenantCardinality:   2,
	}
}

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if !collector.enabled {
		t.Error("Collector should be enabled when Enabled is unset")
	}

	if NewCollector(config.MetricsConfig{}, nil).Registry() == nil {
		t.Error("Expected a fresh registry when nil is passed")
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRequest("openai-gpt4", "gpt-4", "success", 300*time.Millisecond, 120, 80)
	collector.RecordRequest("openai-gpt4", "gpt-4", "success", time.Second, 10, 0)
	collector.RecordRequest("", "", "no_providers", time.Millisecond, 0, 0)

	rm := collector.requestMetrics
	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("openai-gpt4", "gpt-4", "success")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("none", "unknown", "no_providers")); got != 1 {
		t.Errorf("requests_total for unrouted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.tokensTotal.WithLabelValues("openai-gpt4", "gpt-4", "input")); got != 130 {
		t.Errorf("input tokens = %v, want 130", got)
	}
	if got := testutil.ToFloat64(rm.tokensTotal.WithLabelValues("openai-gpt4", "gpt-4", "output")); got != 80 {
		t.Errorf("output tokens = %v, want 80", got)
	}
	if got := testutil.CollectAndCount(collector.providerMetrics.latency); got != 1 {
		t.Errorf("provider latency series = %d, want 1", got)
	}
}

func TestCollector_RouteErrorsAndFallbacks(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordRouteError("cost_cap")
	collector.RecordRouteError("cost_cap")
	collector.RecordRouteError("timeout")
	collector.RecordFallback("openai-gpt4", "anthropic-claude")
	collector.SetActiveRequests(3)

	rm := collector.requestMetrics
	if got := testutil.ToFloat64(rm.routeErrors.WithLabelValues("cost_cap")); got != 2 {
		t.Errorf("route errors cost_cap = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.fallbacks.WithLabelValues("openai-gpt4", "anthropic-claude")); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.active); got != 3 {
		t.Errorf("active = %v, want 3", got)
	}
}

func TestCollector_UpdateProviderHealth(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	tests := []struct {
		status providers.HealthStatus
		want   float64
	}{
		{providers.StatusHealthy, 1},
		{providers.StatusDegraded, 0.5},
		{providers.StatusDown, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			collector.UpdateProviderHealth("mistral-edge", tt.status, 20*time.Millisecond)
			got := testutil.ToFloat64(collector.providerMetrics.health.WithLabelValues("mistral-edge"))
			if got != tt.want {
				t.Errorf("provider_health = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollector_ProviderErrors(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordProviderError("openai-gpt4", "timeout")
	collector.RecordRateLimitDenial("openai-gpt4", "request_rate_exceeded")
	collector.RecordRateLimitDenial("openai-gpt4", "request_rate_exceeded")

	pm := collector.providerMetrics
	if got := testutil.ToFloat64(pm.errors.WithLabelValues("openai-gpt4", "timeout")); got != 1 {
		t.Errorf("provider errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.rateLimitDenys.WithLabelValues("openai-gpt4", "request_rate_exceeded")); got != 2 {
		t.Errorf("rate limit denials = %v, want 2", got)
	}
}

func TestCollector_CostMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordUsage("acme", "openai-gpt4", "gpt-4", 0.25, 100, 50)
	collector.RecordUsage("acme", "openai-gpt4", "gpt-4", 0.5, 100, 50)
	collector.RecordUsage("acme", "mistral-edge", "mistral-7b", 0, 100, 50)
	collector.RecordBudgetDecision("acme", true, "")
	collector.RecordBudgetDecision("acme", false, "daily")
	collector.RecordCostAlert("warning")
	collector.SetBudgetUtilization("acme", "daily", 82.5)

	cm := collector.costMetrics
	if got := testutil.ToFloat64(cm.costTotal.WithLabelValues("acme", "openai-gpt4", "gpt-4")); got != 0.75 {
		t.Errorf("cost_total = %v, want 0.75", got)
	}
	if got := testutil.CollectAndCount(cm.costTotal); got != 1 {
		t.Errorf("zero-cost usage should not create a series, got %d", got)
	}
	if got := testutil.ToFloat64(cm.decisions.WithLabelValues("acme", "allowed", "none")); got != 1 {
		t.Errorf("allowed decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.decisions.WithLabelValues("acme", "denied", "daily")); got != 1 {
		t.Errorf("denied decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.alerts.WithLabelValues("warning")); got != 1 {
		t.Errorf("alerts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.utilization.WithLabelValues("acme", "daily")); got != 82.5 {
		t.Errorf("utilization = %v, want 82.5", got)
	}
}

func TestCollector_TenantCardinality(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	for _, tenant := range []string{"a", "b", "c", "d", "a"} {
		collector.RecordBudgetDecision(tenant, true, "")
	}

	cm := collector.costMetrics
	if got := testutil.ToFloat64(cm.decisions.WithLabelValues("a", "allowed", "none")); got != 2 {
		t.Errorf("tenant a = %v, want 2", got)
	}
	if got := testutil.ToFloat64(cm.decisions.WithLabelValues(otherLabel, "allowed", "none")); got != 2 {
		t.Errorf("overflow tenants = %v, want 2", got)
	}
	if got := collector.tenants.Count(); got != 2 {
		t.Errorf("admitted tenants = %d, want 2", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Enabled = &disabled
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordRequest("openai-gpt4", "gpt-4", "success", time.Second, 1, 1)
	collector.RecordCostAlert("warning")
	collector.UpdateProviderHealth("openai-gpt4", providers.StatusHealthy, time.Millisecond)

	if got := testutil.CollectAndCount(collector.requestMetrics.requestsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d request series", got)
	}
	if got := testutil.CollectAndCount(collector.costMetrics.alerts); got != 0 {
		t.Errorf("disabled collector recorded %d alert series", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("x") || !cl.Allow("y") {
		t.Fatal("first two values should be admitted")
	}
	if cl.Allow("z") {
		t.Error("third value should be rejected")
	}
	if !cl.Allow("x") {
		t.Error("known value should stay admitted")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestHandler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordRouteError("timeout")

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `test_metrics_route_errors_total{kind="timeout"} 1`) {
		t.Errorf("route error metric missing from exposition:\n%s", body)
	}
}
