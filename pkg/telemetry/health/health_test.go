package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected time.Duration
	}{
		{"default timeout", 0, DefaultCheckTimeout},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.timeout).checkTimeout; got != tt.expected {
				t.Errorf("expected timeout %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestChecker_RegisterUnregister(t *testing.T) {
	checker := New(time.Second)
	ok := func(context.Context) error { return nil }

	checker.Register("providers", ok)
	checker.Register("ledger", ok)
	checker.Register("ledger", ok)

	if got := checker.Names(); !reflect.DeepEqual(got, []string{"ledger", "providers"}) {
		t.Errorf("Names() = %v", got)
	}

	checker.Unregister("ledger")
	if got := checker.Names(); !reflect.DeepEqual(got, []string{"providers"}) {
		t.Errorf("Names() after Unregister = %v", got)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all pass",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one fails",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return errors.New("boom") },
			},
			wantStatus: StatusNotReady,
			wantFailed: []string{"b"},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(context.Context) error {
					time.Sleep(500 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusNotReady,
			wantFailed: []string{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(50 * time.Millisecond)
			for name, check := range tt.checks {
				checker.Register(name, check)
			}

			report := checker.Readiness(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(report.Checks), len(tt.checks))
			}
			for _, name := range tt.wantFailed {
				if report.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q status = %q, want unhealthy", name, report.Checks[name].Status)
				}
			}
		})
	}
}

type fakeSource struct {
	enabled []*providers.Provider
	health  map[string]providers.ProviderHealth
}

func (f fakeSource) ListEnabled() []*providers.Provider { return f.enabled }

func (f fakeSource) Health(id string) (providers.ProviderHealth, bool) {
	h, ok := f.health[id]
	return h, ok
}

func TestProvidersCheck(t *testing.T) {
	a := &providers.Provider{ID: "a"}
	b := &providers.Provider{ID: "b"}
	down := providers.ProviderHealth{Status: providers.StatusDown}

	tests := []struct {
		name    string
		src     fakeSource
		wantErr bool
	}{
		{"none enabled", fakeSource{}, true},
		{"never checked", fakeSource{enabled: []*providers.Provider{a}}, false},
		{
			name: "one down one healthy",
			src: fakeSource{
				enabled: []*providers.Provider{a, b},
				health: map[string]providers.ProviderHealth{
					"a": down,
					"b": {Status: providers.StatusHealthy},
				},
			},
			wantErr: false,
		},
		{
			name: "degraded counts as available",
			src: fakeSource{
				enabled: []*providers.Provider{a},
				health:  map[string]providers.ProviderHealth{"a": {Status: providers.StatusDegraded}},
			},
			wantErr: false,
		},
		{
			name: "all down",
			src: fakeSource{
				enabled: []*providers.Provider{a, b},
				health:  map[string]providers.ProviderHealth{"a": down, "b": down},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProvidersCheck(tt.src)(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	want := errors.New("connection refused")
	if err := PingCheck(pingerFunc(func(context.Context) error { return want }))(context.Background()); !errors.Is(err, want) {
		t.Errorf("PingCheck error = %v, want %v", err, want)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		check    CheckFunc
		wantCode int
	}{
		{"ready", func(context.Context) error { return nil }, http.StatusOK},
		{"not ready", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.Register("providers", tt.check)

			rec := httptest.NewRecorder()
			checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := report.Checks["providers"]; !ok {
				t.Error("providers check missing from report")
			}
		})
	}
}

func TestLivenessAndVersionHandlers(t *testing.T) {
	checker := New(time.Second)

	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodHead, "/version", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD /version: code %d, body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	VersionHandler("1.2.0", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "1.2.0" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}
}
