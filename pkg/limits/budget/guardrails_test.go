package budget

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"
)

func testLimits() CostLimits {
	return CostLimits{
		DailyLimit:         50,
		MonthlyLimit:       500,
		PerRequestLimit:    40,
		DailyWarning:       80,
		MonthlyWarning:     85,
		EmergencyStop:      true,
		EmergencyThreshold: 600,
	}
}

func newTestGuardrails(opts ...Option) *Guardrails {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(testLimits(), nil, opts...)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestValidateRequest_Rules(t *testing.T) {
	tests := []struct {
		name       string
		limits     CostLimits
		daily      float64
		monthly    float64
		estimated  float64
		wantAllow  bool
		wantType   AlertType
		wantPeriod Period
	}{
		{
			name:      "within budget",
			limits:    testLimits(),
			estimated: 1,
			wantAllow: true,
		},
		{
			name:       "emergency stop wins over everything",
			limits:     CostLimits{DailyLimit: 10, MonthlyLimit: 100, PerRequestLimit: 1, EmergencyStop: true, EmergencyThreshold: 5},
			monthly:    5,
			estimated:  1000,
			wantType:   AlertEmergencyStop,
			wantPeriod: PeriodMonthly,
		},
		{
			name:       "per request cap",
			limits:     testLimits(),
			estimated:  40.01,
			wantType:   AlertLimitExceeded,
			wantPeriod: PeriodRequest,
		},
		{
			name:       "daily cap",
			limits:     testLimits(),
			daily:      45,
			monthly:    45,
			estimated:  6,
			wantType:   AlertLimitExceeded,
			wantPeriod: PeriodDaily,
		},
		{
			name:      "daily cap exactly reached is allowed",
			limits:    testLimits(),
			daily:     45,
			monthly:   45,
			estimated: 5,
			wantAllow: true,
		},
		{
			name:       "monthly cap",
			limits:     testLimits(),
			monthly:    495,
			estimated:  6,
			wantType:   AlertLimitExceeded,
			wantPeriod: PeriodMonthly,
		},
		{
			name:      "emergency stop disabled",
			limits:    CostLimits{MonthlyLimit: 1000, EmergencyThreshold: 10},
			monthly:   20,
			estimated: 1,
			wantAllow: true,
		},
		{
			name:      "zero limits are unlimited",
			limits:    CostLimits{},
			daily:     1e6,
			monthly:   1e6,
			estimated: 1e6,
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.limits, nil, WithLogger(logging.Discard()))
			st, _ := g.state("acme")
			st.daily, st.monthly = tt.daily, tt.monthly

			d := g.ValidateRequest("acme", tt.estimated, "p", "m")
			if d.Allowed != tt.wantAllow {
				t.Fatalf("Allowed = %v, want %v (%s)", d.Allowed, tt.wantAllow, d.Reason)
			}
			if d.Type != tt.wantType || d.Period != tt.wantPeriod {
				t.Errorf("violation = %s/%s, want %s/%s", d.Type, d.Period, tt.wantType, tt.wantPeriod)
			}
			if !d.Allowed && d.Reason == "" {
				t.Error("expected a reason on denial")
			}
		})
	}
}

func TestValidateRequest_DoesNotBook(t *testing.T) {
	g := newTestGuardrails()
	for i := 0; i < 10; i++ {
		if d := g.ValidateRequest("acme", 30, "p", "m"); !d.Allowed {
			t.Fatalf("call %d denied: %s", i, d.Reason)
		}
	}
	if u := g.Usage("acme"); u.Daily != 0 || u.Pending != 0 {
		t.Errorf("usage = %+v", u)
	}
}

func TestGuardrails_SecondRequestOverCapIsDenied(t *testing.T) {
	g := newTestGuardrails()

	g.RecordUsage(Usage{Tenant: "acme", Cost: 30})
	d := g.ValidateRequest("acme", 25, "p", "m")

	if d.Allowed {
		t.Fatal("expected 30 then 25 against a 50 daily cap to be denied")
	}
	if d.Period != PeriodDaily {
		t.Errorf("period = %s, want daily", d.Period)
	}
}

func TestGuardrails_FitsIsSilent(t *testing.T) {
	g := newTestGuardrails()

	var alerts atomic.Int32
	g.Subscribe(func(CostAlert) { alerts.Add(1) })

	g.RecordUsage(Usage{Tenant: "acme", Cost: 35})

	if !g.Fits("acme", 5) {
		t.Error("35+5 should fit a 50 daily cap")
	}
	if g.Fits("acme", 20) {
		t.Error("35+20 should not fit a 50 daily cap")
	}
	if alerts.Load() != 0 {
		t.Errorf("Fits published %d alerts", alerts.Load())
	}

	// The warning threshold was crossed by the dry runs but not consumed.
	if d := g.ValidateRequest("acme", 5, "p", "m"); len(d.Warnings) != 1 {
		t.Errorf("expected the first real evaluation to warn, got %+v", d.Warnings)
	}
}

func TestGuardrails_ReserveCommitRelease(t *testing.T) {
	g := newTestGuardrails()

	r1, d := g.Reserve("acme", 30, "p", "m")
	if !d.Allowed || r1 == nil {
		t.Fatalf("first reserve denied: %s", d.Reason)
	}
	if u := g.Usage("acme"); u.Pending != 30 {
		t.Errorf("pending = %v, want 30", u.Pending)
	}

	if r2, d := g.Reserve("acme", 25, "p", "m"); d.Allowed || r2 != nil {
		t.Fatal("expected pending estimate to block the second reservation")
	}

	if err := g.Commit(r1, Usage{Provider: "p", Model: "m", Cost: 12}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	u := g.Usage("acme")
	if u.Pending != 0 || u.Daily != 12 || u.Monthly != 12 {
		t.Errorf("usage after commit = %+v", u)
	}
	if err := g.Commit(r1, Usage{Cost: 12}); !errors.Is(err, ErrReservationClosed) {
		t.Errorf("double commit error = %v", err)
	}

	r3, d := g.Reserve("acme", 25, "p", "m")
	if !d.Allowed {
		t.Fatalf("reserve after commit denied: %s", d.Reason)
	}
	if err := g.Release(r3); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := g.Release(r3); !errors.Is(err, ErrReservationClosed) {
		t.Errorf("double release error = %v", err)
	}
	if u := g.Usage("acme"); u.Pending != 0 || u.Daily != 12 {
		t.Errorf("usage after release = %+v", u)
	}

	hist := g.History(HistoryFilter{Tenant: "acme"})
	if len(hist) != 1 || hist[0].Tenant != "acme" || hist[0].Cost != 12 {
		t.Errorf("history = %+v", hist)
	}
}

func TestGuardrails_ConcurrentReservationsNeverOvershoot(t *testing.T) {
	g := New(CostLimits{DailyLimit: 10, MonthlyLimit: 100}, nil, WithLogger(logging.Discard()))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, d := g.Reserve("acme", 1, "p", "m")
			if !d.Allowed {
				return
			}
			admitted.Add(1)
			_ = g.Commit(res, Usage{Cost: 1})
		}()
	}
	wg.Wait()

	if admitted.Load() != 10 {
		t.Errorf("admitted = %d, want 10", admitted.Load())
	}
	if u := g.Usage("acme"); !approx(u.Daily, 10) || u.Pending != 0 {
		t.Errorf("usage = %+v", u)
	}
}

func TestGuardrails_AccumulatorsAreAdditive(t *testing.T) {
	g := newTestGuardrails()
	costs := []float64{0.35, 7.5, 1.25, 0.004}

	var sum float64
	for _, c := range costs {
		g.RecordUsage(Usage{Tenant: "acme", Cost: c})
		sum += c
	}

	u := g.Usage("acme")
	if !approx(u.Daily, sum) || !approx(u.Monthly, sum) {
		t.Errorf("usage = %+v, want %v", u, sum)
	}
	if other := g.Usage("globex"); other.Daily != 0 {
		t.Errorf("tenants must not share accumulators: %+v", other)
	}
}

func TestGuardrails_AdmissionIsMonotonic(t *testing.T) {
	g := newTestGuardrails()
	denied := false
	for i := 0; i < 20; i++ {
		d := g.ValidateRequest("acme", 5, "p", "m")
		if denied && d.Allowed {
			t.Fatalf("request %d allowed after an earlier denial with no reset", i)
		}
		if !d.Allowed {
			denied = true
			continue
		}
		g.RecordUsage(Usage{Tenant: "acme", Cost: 5})
	}
	if !denied {
		t.Fatal("expected the daily cap to be reached")
	}
}

func TestGuardrails_Warnings(t *testing.T) {
	g := newTestGuardrails()

	var mu sync.Mutex
	var got []CostAlert
	g.Subscribe(func(a CostAlert) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, a)
	})

	g.RecordUsage(Usage{Tenant: "acme", Cost: 35})

	d := g.ValidateRequest("acme", 5, "p", "m")
	if !d.Allowed || len(d.Warnings) != 1 {
		t.Fatalf("decision = %+v", d)
	}
	w := d.Warnings[0]
	if w.Type != AlertWarning || w.Period != PeriodDaily || w.Severity != SeverityMedium || w.ID == "" {
		t.Errorf("warning = %+v", w)
	}

	if d := g.ValidateRequest("acme", 5, "p", "m"); len(d.Warnings) != 0 {
		t.Errorf("warning must be deduplicated, got %+v", d.Warnings)
	}

	g.ResetDailyCosts()
	g.RecordUsage(Usage{Tenant: "acme", Cost: 40})
	if d := g.ValidateRequest("acme", 1, "p", "m"); len(d.Warnings) != 1 {
		t.Errorf("expected warning again after reset, got %+v", d.Warnings)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("subscriber received %d alerts, want 2", len(got))
	}
}

func TestGuardrails_DenialPublishesAlert(t *testing.T) {
	g := newTestGuardrails()

	var received []CostAlert
	unsubscribe := g.Subscribe(func(a CostAlert) { received = append(received, a) })

	g.ValidateRequest("acme", 41, "openai-gpt4", "gpt-4o")
	if len(received) != 1 {
		t.Fatalf("received %d alerts", len(received))
	}
	a := received[0]
	if a.Type != AlertLimitExceeded || a.Period != PeriodRequest || a.Severity != SeverityHigh {
		t.Errorf("alert = %+v", a)
	}
	if a.Provider != "openai-gpt4" || a.Model != "gpt-4o" || a.Limit != 40 {
		t.Errorf("alert = %+v", a)
	}

	unsubscribe()
	g.ValidateRequest("acme", 41, "p", "m")
	if len(received) != 1 {
		t.Error("unsubscribed handler still called")
	}
	if n := len(g.Alerts()); n != 2 {
		t.Errorf("retained alerts = %d, want 2", n)
	}
}

func TestGuardrails_PanickingHandlerIsIsolated(t *testing.T) {
	g := newTestGuardrails()

	var calls atomic.Int32
	g.Subscribe(func(CostAlert) { panic("boom") })
	g.Subscribe(func(CostAlert) { calls.Add(1) })

	d := g.ValidateRequest("acme", 100, "p", "m")
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if calls.Load() != 1 {
		t.Errorf("second handler calls = %d, want 1", calls.Load())
	}

	if d := g.ValidateRequest("acme", 1, "p", "m"); !d.Allowed {
		t.Errorf("state corrupted after handler panic: %s", d.Reason)
	}
}

func TestGuardrails_ResetMonthly(t *testing.T) {
	g := newTestGuardrails()
	g.RecordUsage(Usage{Tenant: "acme", Cost: 20})
	g.RecordUsage(Usage{Tenant: "globex", Cost: 10})

	g.ResetMonthlyCosts()

	for _, tenant := range []string{"acme", "globex"} {
		u := g.Usage(tenant)
		if u.Monthly != 0 || u.Daily == 0 {
			t.Errorf("%s usage = %+v", tenant, u)
		}
	}
}

func TestGuardrails_Limits(t *testing.T) {
	vip := CostLimits{DailyLimit: 1000, MonthlyLimit: 10000}
	g := New(testLimits(), map[string]CostLimits{"vip": vip}, WithLogger(logging.Discard()))

	if got := g.Limits("vip"); got != vip {
		t.Errorf("vip limits = %+v", got)
	}
	if got := g.Limits("acme"); got != testLimits() {
		t.Errorf("default limits = %+v", got)
	}

	g.SetLimits("acme", vip)
	if d := g.ValidateRequest("acme", 100, "p", "m"); !d.Allowed {
		t.Errorf("override not applied: %s", d.Reason)
	}

	g.ReplaceLimits(testLimits(), nil)
	if got := g.Limits("vip"); got != testLimits() {
		t.Errorf("vip limits after replace = %+v", got)
	}
}

func TestGuardrails_HistoryRing(t *testing.T) {
	g := newTestGuardrails(WithHistorySize(3))
	for i := 1; i <= 5; i++ {
		g.RecordUsage(Usage{Tenant: "acme", Provider: "p", Cost: float64(i)})
	}
	g.RecordUsage(Usage{Tenant: "globex", Provider: "q", Cost: 6})

	all := g.History(HistoryFilter{})
	if len(all) != 3 || all[0].Cost != 4 || all[2].Cost != 6 {
		t.Errorf("history = %+v", all)
	}
	if got := g.History(HistoryFilter{Provider: "q"}); len(got) != 1 {
		t.Errorf("provider filter = %+v", got)
	}
	if got := g.History(HistoryFilter{Limit: 1}); len(got) != 1 || got[0].Cost != 6 {
		t.Errorf("limit filter = %+v", got)
	}
	if g.history.len() != 3 {
		t.Errorf("ring length = %d", g.history.len())
	}
}

type fakeTotals struct {
	calls []time.Time
	byDay map[string]float64
	all   map[string]float64
	err   error
}

func (f *fakeTotals) Totals(_ context.Context, since time.Time) (map[string]float64, error) {
	f.calls = append(f.calls, since)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.calls) == 1 {
		return f.all, nil
	}
	return f.byDay, nil
}

func TestGuardrails_Hydrate(t *testing.T) {
	now := time.Date(2026, 5, 17, 15, 30, 0, 0, time.UTC)
	g := newTestGuardrails(WithClock(func() time.Time { return now }))

	src := &fakeTotals{
		all:   map[string]float64{"acme": 120, "globex": 5},
		byDay: map[string]float64{"acme": 20},
	}
	if err := g.Hydrate(context.Background(), src); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}

	if len(src.calls) != 2 {
		t.Fatalf("Totals calls = %d", len(src.calls))
	}
	if want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC); !src.calls[0].Equal(want) {
		t.Errorf("monthly since = %v, want %v", src.calls[0], want)
	}
	if want := time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC); !src.calls[1].Equal(want) {
		t.Errorf("daily since = %v, want %v", src.calls[1], want)
	}

	if u := g.Usage("acme"); u.Monthly != 120 || u.Daily != 20 {
		t.Errorf("acme usage = %+v", u)
	}
	if u := g.Usage("globex"); u.Monthly != 5 || u.Daily != 0 {
		t.Errorf("globex usage = %+v", u)
	}

	failing := &fakeTotals{err: errors.New("db down")}
	if err := g.Hydrate(context.Background(), failing); err == nil {
		t.Error("expected error")
	}
}

func TestGuardrails_AlertRetention(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 5, 17, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	g := newTestGuardrails(WithClock(clock), WithAlertRetention(time.Hour, 10*time.Millisecond))

	g.ValidateRequest("acme", 100, "p", "m")
	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	g.ValidateRequest("acme", 100, "p", "m")

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := g.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(g.Alerts()) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	g.Stop()
	g.Stop()

	if n := len(g.Alerts()); n != 1 {
		t.Errorf("alerts after cleanup = %d, want 1", n)
	}
}

func TestGuardrails_MaxAlerts(t *testing.T) {
	g := newTestGuardrails(WithMaxAlerts(3))

	for i := 0; i < 10; i++ {
		g.ValidateRequest("acme", 100, "p", "m")
	}
	g.ValidateRequest("globex", 100, "p", "m")

	alerts := g.Alerts()
	if len(alerts) != 3 {
		t.Fatalf("retained alerts = %d, want 3", len(alerts))
	}
	if alerts[2].Tenant != "globex" {
		t.Errorf("newest alert tenant = %s, want globex", alerts[2].Tenant)
	}
	if alerts[0].Tenant != "acme" || alerts[1].Tenant != "acme" {
		t.Errorf("oldest alerts were not the ones evicted: %+v", alerts)
	}
}

func TestAdmission_RepeatedDenialAlertsOnce(t *testing.T) {
	m := newRecordingMetrics()
	g := newTestGuardrails(WithMetrics(m))

	var received []CostAlert
	g.Subscribe(func(a CostAlert) { received = append(received, a) })

	adm := g.Admission("acme")
	for _, provider := range []string{"openai-gpt4", "anthropic-claude", "google-gemini"} {
		if res, d := adm.Reserve(41, provider, "m"); d.Allowed || res != nil {
			t.Fatalf("Reserve(41) on %s allowed", provider)
		}
	}
	res, d := adm.Reserve(30, "mistral-edge", "m")
	if !d.Allowed || res == nil {
		t.Fatalf("Reserve(30) = %+v", d)
	}
	if _, d := adm.Reserve(25, "openai-gpt4", "m"); d.Allowed || d.Period != PeriodDaily {
		t.Fatalf("Reserve(25) = %+v, want daily denial", d)
	}

	if len(received) != 2 {
		t.Fatalf("alerts = %d, want 2", len(received))
	}
	if received[0].Period != PeriodRequest || received[0].Provider != "openai-gpt4" {
		t.Errorf("first alert = %+v", received[0])
	}
	if received[1].Period != PeriodDaily {
		t.Errorf("second alert = %+v", received[1])
	}
	if m.decisions[false] != 2 || m.decisions[true] != 1 {
		t.Errorf("decisions = %v", m.decisions)
	}

	if _, d := g.Admission("acme").Reserve(41, "openai-gpt4", "m"); d.Allowed {
		t.Fatal("Reserve(41) allowed")
	}
	if len(received) != 3 {
		t.Errorf("a new admission should alert again, alerts = %d", len(received))
	}
	_ = g.Release(res)
}

type recordingMetrics struct {
	mu          sync.Mutex
	usage       float64
	decisions   map[bool]int
	alerts      map[string]int
	utilization map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		decisions:   make(map[bool]int),
		alerts:      make(map[string]int),
		utilization: make(map[string]float64),
	}
}

func (m *recordingMetrics) RecordUsage(_, _, _ string, cost float64, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage += cost
}

func (m *recordingMetrics) RecordBudgetDecision(_ string, allowed bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[allowed]++
}

func (m *recordingMetrics) RecordCostAlert(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alertType]++
}

func (m *recordingMetrics) SetBudgetUtilization(tenant, period string, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utilization[tenant+"/"+period] = pct
}

func TestGuardrails_Metrics(t *testing.T) {
	m := newRecordingMetrics()
	g := newTestGuardrails(WithMetrics(m))

	g.RecordUsage(Usage{Tenant: "acme", Cost: 25})
	g.ValidateRequest("acme", 1, "p", "m")
	g.ValidateRequest("acme", 100, "p", "m")

	if m.usage != 25 {
		t.Errorf("usage = %v", m.usage)
	}
	if m.decisions[true] != 1 || m.decisions[false] != 1 {
		t.Errorf("decisions = %v", m.decisions)
	}
	if m.alerts["limit_exceeded"] != 1 {
		t.Errorf("alerts = %v", m.alerts)
	}
	if m.utilization["acme/daily"] != 50 || m.utilization["acme/monthly"] != 5 {
		t.Errorf("utilization = %v", m.utilization)
	}
}

func TestLimitsFromConfig(t *testing.T) {
	defaults, tenants := TenantLimitsFromConfig(config.BudgetsConfig{
		Defaults: config.DefaultCostLimits(),
		Tenants: map[string]config.CostLimitsConfig{
			"acme": {DailyLimit: 5, MonthlyLimit: 50},
		},
	})

	if defaults.DailyLimit != config.DefaultDailyLimit || !defaults.EmergencyStop {
		t.Errorf("defaults = %+v", defaults)
	}
	if tenants["acme"].DailyLimit != 5 || tenants["acme"].EmergencyStop {
		t.Errorf("acme = %+v", tenants["acme"])
	}
}
