package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/budget"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ledger"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ratelimit"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/rollover"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/routing"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/server"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/health"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/metrics"
)

// app owns every long-lived service of the run command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	registry   *providers.Registry
	adapters   *providers.AdapterSet
	limiter    *ratelimit.Limiter
	guardrails *budget.Guardrails
	ledger     ledger.Ledger
	collector  *metrics.Collector
	monitor    *providers.Monitor
	rollover   *rollover.Scheduler
	engine     *routing.Engine
	checker    *health.Checker
	server     *server.Server

	unsubscribe func()
}

// newApp builds the services described by cfg. Nothing runs until start.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.registry = providers.NewRegistry(cfg.Health.OutcomeWindow)
	if err := providers.RegisterAll(a.registry, cfg.Providers); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	a.adapters = providers.NewAdapterSet()
	for _, p := range a.registry.List() {
		a.adapters.Set(p.ID, providers.NewHTTPAdapter(p, nil, logger.With("provider", p.ID)))
	}

	a.collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	a.limiter = ratelimit.New()

	loc, err := time.LoadLocation(cfg.Budgets.Rollover.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid rollover timezone %q: %w", cfg.Budgets.Rollover.Timezone, err)
	}

	defaults, tenants, err := tenantLimits(cfg.Budgets)
	if err != nil {
		return nil, err
	}
	a.guardrails = budget.New(defaults, tenants,
		budget.WithMetrics(a.collector),
		budget.WithLogger(logger),
		budget.WithLocation(loc),
		budget.WithHistorySize(cfg.Budgets.HistorySize),
		budget.WithAlertRetention(cfg.Budgets.AlertRetention, cfg.Budgets.AlertCleanupInterval),
		budget.WithMaxAlerts(cfg.Budgets.MaxAlerts),
	)
	a.unsubscribe = a.guardrails.Subscribe(func(alert budget.CostAlert) {
		logger.Warn("cost alert",
			"tenant", alert.Tenant,
			"type", alert.Type,
			"period", alert.Period,
			"severity", alert.Severity,
			"current", alert.Current,
			"limit", alert.Limit,
			"message", alert.Message,
		)
	})

	a.ledger, err = ledger.Open(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s ledger: %w", cfg.Ledger.Backend, err)
	}

	a.monitor = providers.NewMonitor(a.registry, providers.MonitorConfig{
		Interval:          cfg.Health.Interval,
		ProbeTimeout:      cfg.Health.ProbeTimeout,
		DegradedErrorRate: cfg.Health.DegradedErrorRate,
	},
		providers.WithHealthMetrics(a.collector),
		providers.WithMonitorLogger(logger),
	)

	if config.BoolValue(cfg.Budgets.Rollover.Enabled, config.DefaultRolloverEnabled) {
		a.rollover = rollover.NewScheduler(a.guardrails, rollover.Config{
			DailySchedule:   cfg.Budgets.Rollover.DailySchedule,
			MonthlySchedule: cfg.Budgets.Rollover.MonthlySchedule,
			Location:        loc,
		}, logger)
	}

	a.engine = routing.New(a.registry, a.limiter, a.guardrails, a.adapters,
		routing.WithConfig(routing.ConfigFrom(cfg.Routing)),
		routing.WithMetrics(a.collector),
		routing.WithLedger(a.ledger),
		routing.WithLogger(logger),
	)

	a.checker = health.New(cfg.Health.ProbeTimeout)
	a.checker.Register("providers", health.ProvidersCheck(a.registry))
	a.checker.Register("ledger", health.PingCheck(a.ledger))

	deps := server.Deps{
		Engine:     a.engine,
		Guardrails: a.guardrails,
		Health:     a.checker,
		Logger:     logger,
		Version:    Version,
		Commit:     GitCommit,
		BuildTime:  BuildDate,
	}
	if config.BoolValue(cfg.Telemetry.Metrics.Enabled, config.DefaultMetricsEnabled) {
		deps.Metrics = a.collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	a.server = server.New(cfg.Server, deps)

	return a, nil
}

// tenantLimits merges configured tenant overrides with the optional
// tenants file. File entries win.
func tenantLimits(b config.BudgetsConfig) (budget.CostLimits, map[string]budget.CostLimits, error) {
	defaults, tenants := budget.TenantLimitsFromConfig(b)
	if b.TenantsFile == "" {
		return defaults, tenants, nil
	}

	fromFile, err := config.LoadTenantLimits(b.TenantsFile, b.Defaults)
	if err != nil {
		return budget.CostLimits{}, nil, err
	}
	for tenant, l := range fromFile {
		tenants[tenant] = budget.LimitsFromConfig(l)
	}
	return defaults, tenants, nil
}

// serve hydrates budgets from the ledger, starts the background loops and
// the HTTP server, and blocks until ctx is canceled.
func (a *app) serve(ctx context.Context) error {
	if err := a.guardrails.Hydrate(ctx, a.ledger); err != nil {
		a.logger.Warn("budget hydration failed, starting from zero", "error", err)
	}

	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start routing engine: %w", err)
	}
	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	if err := a.guardrails.Start(ctx); err != nil {
		return fmt.Errorf("failed to start alert retention: %w", err)
	}
	if a.rollover != nil {
		if err := a.rollover.Start(ctx); err != nil {
			return fmt.Errorf("failed to start budget rollover: %w", err)
		}
		daily, monthly := a.rollover.NextRuns()
		a.logger.Info("budget rollover scheduled", "next_daily", daily, "next_monthly", monthly)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	var wg sync.WaitGroup
	if path := a.cfg.Budgets.TenantsFile; path != "" {
		w, err := config.NewWatcher(path, 0, a.logger)
		if err != nil {
			return err
		}
		defer w.Stop()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Watch(watchCtx, a.reloadTenants); err != nil {
				a.logger.Error("tenant limits watcher stopped", "error", err)
			}
		}()
	}

	err := a.server.Start(ctx)
	stopWatch()
	wg.Wait()
	return err
}

// reloadTenants re-reads the tenants file and swaps the limits in place.
func (a *app) reloadTenants() error {
	defaults, tenants, err := tenantLimits(a.cfg.Budgets)
	if err != nil {
		return err
	}
	a.guardrails.ReplaceLimits(defaults, tenants)
	a.logger.Info("tenant limits reloaded", "tenants", len(tenants))
	return nil
}

// close stops every background loop and releases the ledger.
func (a *app) close() error {
	if a.rollover != nil {
		a.rollover.Stop()
	}
	a.guardrails.Stop()
	a.monitor.Stop()
	a.engine.Stop()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}

	var errs []error
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}
