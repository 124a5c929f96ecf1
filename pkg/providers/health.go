package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Health monitor defaults.
const (
	DefaultHealthInterval    = 30 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultDegradedErrorRate = 50.0
)

// Prober performs a live reachability check against a provider.
type Prober interface {
	Probe(ctx context.Context, p *Provider) error
}

// HealthMetrics receives the outcome of every health check.
type HealthMetrics interface {
	UpdateProviderHealth(provider string, status HealthStatus, latency time.Duration)
}

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// Interval between health cycles.
	Interval time.Duration

	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration

	// DegradedErrorRate is the execution error percentage above which a
	// reachable provider is reported degraded.
	DegradedErrorRate float64
}

// MonitorOption customises a Monitor.
type MonitorOption func(*Monitor)

// WithProber replaces the HTTP prober.
func WithProber(p Prober) MonitorOption {
	return func(m *Monitor) { m.prober = p }
}

// WithHealthMetrics attaches a metrics sink.
func WithHealthMetrics(hm HealthMetrics) MonitorOption {
	return func(m *Monitor) { m.metrics = hm }
}

// WithMonitorLogger sets the logger.
func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// Monitor checks every enabled provider on a fixed interval and publishes
// the results to the Registry. It runs independently of request traffic.
type Monitor struct {
	registry *Registry
	prober   Prober
	metrics  HealthMetrics
	logger   *slog.Logger
	cfg      MonitorConfig
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a health monitor over registry.
func NewMonitor(registry *Registry, cfg MonitorConfig, opts ...MonitorOption) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.DegradedErrorRate <= 0 {
		cfg.DegradedErrorRate = DefaultDegradedErrorRate
	}

	m := &Monitor{
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		m.prober = NewHTTPProber(nil)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Start runs one cycle immediately and then one per interval until Stop is
// called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("health monitor already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, m.done)

	m.logger.Info("health monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("health monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.CheckAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll checks every enabled provider concurrently, stores the results in
// the registry and returns them.
func (m *Monitor) CheckAll(ctx context.Context) []ProviderHealth {
	enabled := m.registry.ListEnabled()
	results := make([]ProviderHealth, len(enabled))

	var wg sync.WaitGroup
	for i, p := range enabled {
		wg.Add(1)
		go func(i int, p *Provider) {
			defer wg.Done()
			results[i] = m.Check(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

// Check runs a single health check for p and publishes the result.
func (m *Monitor) Check(ctx context.Context, p *Provider) (h ProviderHealth) {
	start := m.now()
	h = ProviderHealth{
		ProviderID: p.ID,
		Status:     StatusHealthy,
		ErrorRate:  m.registry.ErrorRate(p.ID),
	}

	defer func() {
		if r := recover(); r != nil {
			h.Status = StatusDown
			h.ErrorRate = 100
			h.Message = fmt.Sprintf("health check panicked: %v", r)
		}
		h.Latency = m.now().Sub(start)
		h.LastCheck = m.now()
		m.publish(p, h)
	}()

	switch {
	case p.HealthPath != "":
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		err := m.prober.Probe(probeCtx, p)
		cancel()
		if err != nil {
			h.Status = StatusDown
			h.ErrorRate = 100
			h.Message = err.Error()
			return h
		}

	case p.Kind == KindCloud:
		// Without a probe path the only signal for a cloud provider is
		// whether it can authenticate at all.
		if !p.HasCredential() {
			h.Status = StatusDown
			h.Message = "no credential configured"
			return h
		}
	}

	if h.ErrorRate > m.cfg.DegradedErrorRate {
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("execution error rate %.1f%%", h.ErrorRate)
	}
	return h
}

func (m *Monitor) publish(p *Provider, h ProviderHealth) {
	prev, seen := m.registry.Health(p.ID)
	m.registry.SetHealth(h)

	if m.metrics != nil {
		m.metrics.UpdateProviderHealth(p.ID, h.Status, h.Latency)
	}

	switch {
	case seen && prev.Status != h.Status:
		m.logger.Warn("provider health changed",
			"provider", p.ID,
			"from", prev.Status,
			"to", h.Status,
			"error_rate", h.ErrorRate,
			"message", h.Message,
		)
	case h.Status != StatusHealthy:
		m.logger.Debug("provider unhealthy",
			"provider", p.ID,
			"status", h.Status,
			"message", h.Message,
		)
	}
}

// HTTPProber probes GET BaseURL+HealthPath and expects a 2xx answer.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober. A nil client uses a dedicated client
// without a global timeout; the probe context bounds each call.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProber{client: client}
}

// Probe implements Prober.
func (hp *HTTPProber) Probe(ctx context.Context, p *Provider) error {
	url := strings.TrimRight(p.Connection.BaseURL, "/") + p.HealthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	for k, v := range p.Connection.Headers {
		req.Header.Set(k, v)
	}
	if p.HasCredential() {
		req.Header.Set("Authorization", "Bearer "+p.Connection.APIKey)
	}

	resp, err := hp.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Provider: p.ID, Timeout: timeoutOf(ctx)}
		}
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Provider: p.ID, StatusCode: resp.StatusCode, Message: "health probe failed"}
	}
	return nil
}

func timeoutOf(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return 0
}
