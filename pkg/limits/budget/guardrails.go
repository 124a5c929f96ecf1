package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Guardrail defaults.
const (
	DefaultHistorySize          = 10000
	DefaultAlertRetention       = 24 * time.Hour
	DefaultAlertCleanupInterval = time.Hour
	DefaultMaxAlerts            = 1000
)

// Metrics receives guardrail activity. metrics.Collector implements it.
type Metrics interface {
	RecordUsage(tenant, provider, model string, cost float64, tokensIn, tokensOut int)
	RecordBudgetDecision(tenant string, allowed bool, reason string)
	RecordCostAlert(alertType string)
	SetBudgetUtilization(tenant, period string, percent float64)
}

// TotalsSource reports the summed cost per tenant since a point in time.
// Ledger backends implement it.
type TotalsSource interface {
	Totals(ctx context.Context, since time.Time) (map[string]float64, error)
}

// Option customises Guardrails.
type Option func(*Guardrails)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(g *Guardrails) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guardrails) { g.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guardrails) { g.now = now }
}

// WithLocation sets the time zone used to find the start of the current
// day and month when hydrating.
func WithLocation(loc *time.Location) Option {
	return func(g *Guardrails) { g.loc = loc }
}

// WithHistorySize caps the usage history.
func WithHistorySize(n int) Option {
	return func(g *Guardrails) { g.history = newHistory(n) }
}

// WithAlertRetention sets how long alerts are kept and how often expired
// ones are dropped while running.
func WithAlertRetention(retention, interval time.Duration) Option {
	return func(g *Guardrails) {
		if retention > 0 {
			g.retention = retention
		}
		if interval > 0 {
			g.cleanupInterval = interval
		}
	}
}

// WithMaxAlerts caps the number of retained alerts. The oldest are
// dropped first.
func WithMaxAlerts(n int) Option {
	return func(g *Guardrails) {
		if n > 0 {
			g.maxAlerts = n
		}
	}
}

// Guardrails enforces per-tenant cost budgets. Admission is
// reserve-then-commit: Reserve evaluates the limits and books the estimate
// as pending under the tenant's lock, so concurrent requests can never
// jointly overshoot a cap. Commit swaps the estimate for the real cost,
// Release drops it.
type Guardrails struct {
	mu        sync.RWMutex
	defaults  CostLimits
	overrides map[string]CostLimits
	tenants   map[string]*tenantState

	histMu  sync.Mutex
	history *history

	alertMu   sync.Mutex
	alerts    []CostAlert
	maxAlerts int
	handlers  map[int]AlertHandler
	nextID    int

	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location

	retention       time.Duration
	cleanupInterval time.Duration

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type tenantState struct {
	mu      sync.Mutex
	daily   float64
	monthly float64
	pending float64
	warned  map[Period]bool
}

// New creates Guardrails applying defaults to every tenant without an
// override.
func New(defaults CostLimits, overrides map[string]CostLimits, opts ...Option) *Guardrails {
	g := &Guardrails{
		defaults:        defaults,
		overrides:       copyLimits(overrides),
		tenants:         make(map[string]*tenantState),
		handlers:        make(map[int]AlertHandler),
		now:             time.Now,
		loc:             time.UTC,
		maxAlerts:       DefaultMaxAlerts,
		retention:       DefaultAlertRetention,
		cleanupInterval: DefaultAlertCleanupInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.history == nil {
		g.history = newHistory(DefaultHistorySize)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

func copyLimits(in map[string]CostLimits) map[string]CostLimits {
	out := make(map[string]CostLimits, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SetLimits overrides the budget of one tenant.
func (g *Guardrails) SetLimits(tenant string, limits CostLimits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overrides[tenant] = limits
}

// ReplaceLimits swaps the defaults and every override at once. Tenants
// missing from overrides fall back to defaults. Accumulators are kept.
func (g *Guardrails) ReplaceLimits(defaults CostLimits, overrides map[string]CostLimits) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaults = defaults
	g.overrides = copyLimits(overrides)
}

// Limits returns the budget that applies to a tenant.
func (g *Guardrails) Limits(tenant string) CostLimits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limitsLocked(tenant)
}

func (g *Guardrails) limitsLocked(tenant string) CostLimits {
	if l, ok := g.overrides[tenant]; ok {
		return l
	}
	return g.defaults
}

// state returns the tenant's accumulators and current limits.
func (g *Guardrails) state(tenant string) (*tenantState, CostLimits) {
	g.mu.RLock()
	st, ok := g.tenants[tenant]
	limits := g.limitsLocked(tenant)
	g.mu.RUnlock()
	if ok {
		return st, limits
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok = g.tenants[tenant]; !ok {
		st = &tenantState{warned: make(map[Period]bool)}
		g.tenants[tenant] = st
	}
	return st, g.limitsLocked(tenant)
}

// ValidateRequest evaluates whether a request with the given estimated
// cost fits the tenant's budget without booking anything. Rules are
// checked in order and the first violation wins:
//
//  1. emergency stop: monthly total at or above the threshold
//  2. estimate above the per-request cap
//  3. daily total plus pending plus estimate above the daily cap
//  4. monthly total plus pending plus estimate above the monthly cap
//
// Allowed decisions may carry warnings when a warning threshold is
// crossed for the first time since the last reset.
func (g *Guardrails) ValidateRequest(tenant string, estimated float64, provider, model string) Decision {
	st, limits := g.state(tenant)

	st.mu.Lock()
	d := g.evaluate(st, limits, tenant, estimated, provider, model, false)
	st.mu.Unlock()

	g.emit(tenant, d, provider, model)
	return d
}

// Fits reports whether ValidateRequest would allow the estimate right now.
// It books nothing, publishes no alert and records no metric.
func (g *Guardrails) Fits(tenant string, estimated float64) bool {
	st, limits := g.state(tenant)

	st.mu.Lock()
	defer st.mu.Unlock()
	return g.evaluate(st, limits, tenant, estimated, "", "", true).Allowed
}

// Reserve runs the ValidateRequest evaluation and, when allowed, books the
// estimate as pending in the same critical section. The reservation must
// be passed to Commit or Release.
func (g *Guardrails) Reserve(tenant string, estimated float64, provider, model string) (*Reservation, Decision) {
	res, d := g.reserve(tenant, estimated, provider, model)
	g.emit(tenant, d, provider, model)
	return res, d
}

func (g *Guardrails) reserve(tenant string, estimated float64, provider, model string) (*Reservation, Decision) {
	st, limits := g.state(tenant)

	st.mu.Lock()
	d := g.evaluate(st, limits, tenant, estimated, provider, model, false)
	var res *Reservation
	if d.Allowed {
		st.pending += estimated
		res = &Reservation{
			ID:        uuid.New().String(),
			Tenant:    tenant,
			Provider:  provider,
			Model:     model,
			Estimated: estimated,
			CreatedAt: g.now(),
		}
	}
	st.mu.Unlock()
	return res, d
}

// Commit replaces the reserved estimate with the actual cost in u and
// records the usage. Both happen under the tenant's lock.
func (g *Guardrails) Commit(res *Reservation, u Usage) error {
	if res == nil || !res.closed.CompareAndSwap(false, true) {
		return ErrReservationClosed
	}
	if u.Tenant == "" {
		u.Tenant = res.Tenant
	}
	g.record(u, res.Estimated)
	return nil
}

// Release drops a reservation without recording usage.
func (g *Guardrails) Release(res *Reservation) error {
	if res == nil || !res.closed.CompareAndSwap(false, true) {
		return ErrReservationClosed
	}

	st, _ := g.state(res.Tenant)
	st.mu.Lock()
	st.pending = dropPending(st.pending, res.Estimated)
	st.mu.Unlock()
	return nil
}

func dropPending(pending, amount float64) float64 {
	pending -= amount
	if pending < 1e-12 {
		return 0
	}
	return pending
}

// RecordUsage adds the cost to the tenant's daily and monthly totals,
// appends it to the history and forwards it to metrics.
func (g *Guardrails) RecordUsage(u Usage) {
	g.record(u, 0)
}

func (g *Guardrails) record(u Usage, reserved float64) {
	if u.Timestamp.IsZero() {
		u.Timestamp = g.now()
	}

	st, limits := g.state(u.Tenant)
	st.mu.Lock()
	if reserved > 0 {
		st.pending = dropPending(st.pending, reserved)
	}
	st.daily += u.Cost
	st.monthly += u.Cost
	daily, monthly := st.daily, st.monthly
	st.mu.Unlock()

	g.histMu.Lock()
	g.history.add(u)
	g.histMu.Unlock()

	if g.metrics != nil {
		g.metrics.RecordUsage(u.Tenant, u.Provider, u.Model, u.Cost, u.TokensIn, u.TokensOut)
		g.metrics.SetBudgetUtilization(u.Tenant, string(PeriodDaily), percent(daily, limits.DailyLimit))
		g.metrics.SetBudgetUtilization(u.Tenant, string(PeriodMonthly), percent(monthly, limits.MonthlyLimit))
	}
}

func percent(total, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return total / limit * 100
}

// evaluate applies the guardrail rules. Callers hold st.mu. A dry run
// skips warnings so that it leaves the dedupe state untouched.
func (g *Guardrails) evaluate(st *tenantState, l CostLimits, tenant string, est float64, provider, model string, dryRun bool) Decision {
	deny := func(t AlertType, p Period, current, limit float64, format string, args ...any) Decision {
		return Decision{
			Type:    t,
			Period:  p,
			Current: current,
			Limit:   limit,
			Reason:  fmt.Sprintf(format, args...),
		}
	}

	switch {
	case l.EmergencyStop && st.monthly >= l.EmergencyThreshold:
		return deny(AlertEmergencyStop, PeriodMonthly, st.monthly, l.EmergencyThreshold,
			"emergency stop: monthly spend %.4f reached threshold %.4f", st.monthly, l.EmergencyThreshold)

	case l.PerRequestLimit > 0 && est > l.PerRequestLimit:
		return deny(AlertLimitExceeded, PeriodRequest, est, l.PerRequestLimit,
			"estimated cost %.4f exceeds per-request limit %.4f", est, l.PerRequestLimit)

	case l.DailyLimit > 0 && st.daily+st.pending+est > l.DailyLimit:
		return deny(AlertLimitExceeded, PeriodDaily, st.daily+st.pending, l.DailyLimit,
			"daily limit %.4f would be exceeded (spent %.4f, pending %.4f, estimated %.4f)",
			l.DailyLimit, st.daily, st.pending, est)

	case l.MonthlyLimit > 0 && st.monthly+st.pending+est > l.MonthlyLimit:
		return deny(AlertLimitExceeded, PeriodMonthly, st.monthly+st.pending, l.MonthlyLimit,
			"monthly limit %.4f would be exceeded (spent %.4f, pending %.4f, estimated %.4f)",
			l.MonthlyLimit, st.monthly, st.pending, est)
	}

	d := Decision{Allowed: true}
	if dryRun {
		return d
	}
	checks := []struct {
		period    Period
		total     float64
		limit     float64
		threshold float64
	}{
		{PeriodDaily, st.daily, l.DailyLimit, l.DailyWarning},
		{PeriodMonthly, st.monthly, l.MonthlyLimit, l.MonthlyWarning},
	}
	for _, c := range checks {
		if c.limit <= 0 || c.threshold <= 0 || st.warned[c.period] {
			continue
		}
		projected := c.total + st.pending + est
		pct := projected / c.limit * 100
		if pct < c.threshold {
			continue
		}
		st.warned[c.period] = true
		d.Warnings = append(d.Warnings, g.newAlert(tenant, AlertWarning, c.period, provider, model, projected, c.limit,
			fmt.Sprintf("%s spend at %.1f%% of limit %.4f", c.period, pct, c.limit)))
	}
	return d
}

func (g *Guardrails) newAlert(tenant string, t AlertType, p Period, provider, model string, current, limit float64, msg string) CostAlert {
	return CostAlert{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Type:      t,
		Period:    p,
		Severity:  severityOf(t),
		Message:   msg,
		Provider:  provider,
		Model:     model,
		Current:   current,
		Limit:     limit,
		Timestamp: g.now(),
	}
}

// emit publishes the alerts of a decision. It runs outside every tenant
// lock.
func (g *Guardrails) emit(tenant string, d Decision, provider, model string) {
	if g.metrics != nil {
		g.metrics.RecordBudgetDecision(tenant, d.Allowed, string(d.Type))
	}

	alerts := d.Warnings
	if !d.Allowed {
		alerts = append(alerts, g.newAlert(tenant, d.Type, d.Period, provider, model, d.Current, d.Limit, d.Reason))
		g.logger.Warn("budget guardrail denied request",
			"tenant", tenant,
			"type", d.Type,
			"period", d.Period,
			"reason", d.Reason,
		)
	}
	for _, a := range alerts {
		g.publish(a)
	}
}

// Subscribe registers an alert handler and returns a func removing it.
func (g *Guardrails) Subscribe(h AlertHandler) (unsubscribe func()) {
	g.alertMu.Lock()
	id := g.nextID
	g.nextID++
	g.handlers[id] = h
	g.alertMu.Unlock()

	return func() {
		g.alertMu.Lock()
		delete(g.handlers, id)
		g.alertMu.Unlock()
	}
}

func (g *Guardrails) publish(a CostAlert) {
	g.alertMu.Lock()
	if len(g.alerts) >= g.maxAlerts {
		n := copy(g.alerts, g.alerts[len(g.alerts)-g.maxAlerts+1:])
		g.alerts = g.alerts[:n]
	}
	g.alerts = append(g.alerts, a)
	ids := make([]int, 0, len(g.handlers))
	for id := range g.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]AlertHandler, len(ids))
	for i, id := range ids {
		handlers[i] = g.handlers[id]
	}
	g.alertMu.Unlock()

	if g.metrics != nil {
		g.metrics.RecordCostAlert(string(a.Type))
	}
	for _, h := range handlers {
		g.dispatch(h, a)
	}
}

func (g *Guardrails) dispatch(h AlertHandler, a CostAlert) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("cost alert handler panicked",
				"alert_id", a.ID,
				"type", a.Type,
				"panic", r,
			)
		}
	}()
	h(a)
}

// Alerts returns the retained alerts, oldest first. At most the
// WithMaxAlerts cap is kept.
func (g *Guardrails) Alerts() []CostAlert {
	g.alertMu.Lock()
	defer g.alertMu.Unlock()
	return append([]CostAlert(nil), g.alerts...)
}

// Usage returns a snapshot of a tenant's accumulators.
func (g *Guardrails) Usage(tenant string) TenantUsage {
	st, limits := g.state(tenant)
	st.mu.Lock()
	defer st.mu.Unlock()
	return TenantUsage{
		Tenant:         tenant,
		Daily:          st.daily,
		Monthly:        st.monthly,
		Pending:        st.pending,
		DailyPercent:   percent(st.daily, limits.DailyLimit),
		MonthlyPercent: percent(st.monthly, limits.MonthlyLimit),
		Limits:         limits,
	}
}

// Tenants returns the ids of every tenant seen so far, sorted.
func (g *Guardrails) Tenants() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.tenants))
	for id := range g.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History returns recorded usage matching f, oldest first.
func (g *Guardrails) History(f HistoryFilter) []Usage {
	g.histMu.Lock()
	defer g.histMu.Unlock()
	return g.history.filter(f)
}

// ResetDailyCosts zeroes every tenant's daily total and clears daily
// warning state.
func (g *Guardrails) ResetDailyCosts() {
	g.reset(PeriodDaily)
}

// ResetMonthlyCosts zeroes every tenant's monthly total and clears monthly
// warning state.
func (g *Guardrails) ResetMonthlyCosts() {
	g.reset(PeriodMonthly)
}

func (g *Guardrails) reset(p Period) {
	g.mu.RLock()
	states := make(map[string]*tenantState, len(g.tenants))
	for id, st := range g.tenants {
		states[id] = st
	}
	g.mu.RUnlock()

	for id, st := range states {
		st.mu.Lock()
		switch p {
		case PeriodDaily:
			st.daily = 0
		case PeriodMonthly:
			st.monthly = 0
		}
		delete(st.warned, p)
		st.mu.Unlock()

		if g.metrics != nil {
			g.metrics.SetBudgetUtilization(id, string(p), 0)
		}
	}
	g.logger.Info("cost accumulators reset", "period", p, "tenants", len(states))
}

// Hydrate loads the current day's and month's totals from src, replacing
// the in-memory accumulators of every tenant src reports.
func (g *Guardrails) Hydrate(ctx context.Context, src TotalsSource) error {
	now := g.now().In(g.loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, g.loc)

	monthly, err := src.Totals(ctx, startOfMonth)
	if err != nil {
		return fmt.Errorf("failed to load monthly totals: %w", err)
	}
	daily, err := src.Totals(ctx, startOfDay)
	if err != nil {
		return fmt.Errorf("failed to load daily totals: %w", err)
	}

	for tenant, total := range monthly {
		st, _ := g.state(tenant)
		st.mu.Lock()
		st.monthly = total
		st.daily = daily[tenant]
		st.mu.Unlock()
	}

	g.logger.Info("cost accumulators hydrated", "tenants", len(monthly))
	return nil
}

// Start runs the alert retention loop until Stop is called or ctx is
// cancelled.
func (g *Guardrails) Start(ctx context.Context) error {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if g.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(g.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.CleanupAlerts()
			}
		}
	}(g.done)
	return nil
}

// Stop ends the retention loop and waits for it to exit.
func (g *Guardrails) Stop() {
	g.runMu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel = nil
	g.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// CleanupAlerts drops alerts older than the retention period and returns
// how many were removed.
func (g *Guardrails) CleanupAlerts() int {
	cutoff := g.now().Add(-g.retention)

	g.alertMu.Lock()
	defer g.alertMu.Unlock()

	kept := g.alerts[:0]
	for _, a := range g.alerts {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(g.alerts) - len(kept)
	g.alerts = kept

	if removed > 0 {
		g.logger.Debug("expired cost alerts removed", "count", removed)
	}
	return removed
}
