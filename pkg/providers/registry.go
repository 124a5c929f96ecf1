package providers

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultOutcomeWindow is the number of recent executions kept per provider
// for error rate computation.
const DefaultOutcomeWindow = 100

// Registry holds the provider catalogue, the latest health of each
// provider, and a short window of execution outcomes. It is safe for
// concurrent use. Returned providers are copies.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	health    map[string]ProviderHealth
	outcomes  map[string]*outcomeWindow
	window    int
}

// NewRegistry creates an empty registry. window sets the number of recent
// outcomes kept per provider; zero uses DefaultOutcomeWindow.
func NewRegistry(window int) *Registry {
	if window <= 0 {
		window = DefaultOutcomeWindow
	}
	return &Registry{
		providers: make(map[string]*Provider),
		health:    make(map[string]ProviderHealth),
		outcomes:  make(map[string]*outcomeWindow),
		window:    window,
	}
}

// Register inserts or replaces a provider by id.
func (r *Registry) Register(p *Provider) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProvider)
	}
	if p.Kind != KindEdge && p.Kind != KindCloud {
		return fmt.Errorf("%w: provider %q has unknown kind %q", ErrInvalidProvider, p.ID, p.Kind)
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("%w: provider %q has no models", ErrInvalidProvider, p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p.Clone()
	if _, ok := r.outcomes[p.ID]; !ok {
		r.outcomes[p.ID] = newOutcomeWindow(r.window)
	}
	return nil
}

// Get returns a copy of the provider with the given id.
func (r *Registry) Get(id string) (*Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// SetEnabled toggles a provider in or out of routing.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	p.Enabled = enabled
	return nil
}

// List returns every registered provider sorted by id.
func (r *Registry) List() []*Provider {
	return r.filter(func(*Provider) bool { return true })
}

// ListEnabled returns enabled providers sorted by id.
func (r *Registry) ListEnabled() []*Provider {
	return r.filter(func(p *Provider) bool { return p.Enabled })
}

// ListByKind returns enabled providers of the given kind.
func (r *Registry) ListByKind(kind Kind) []*Provider {
	return r.filter(func(p *Provider) bool { return p.Enabled && p.Kind == kind })
}

// ListWithCapability returns enabled providers with at least one model
// carrying c.
func (r *Registry) ListWithCapability(c Capability) []*Provider {
	return r.filter(func(p *Provider) bool { return p.Enabled && p.HasCapability(c) })
}

func (r *Registry) filter(keep func(*Provider) bool) []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetHealth stores the latest health observation for a provider.
func (r *Registry) SetHealth(h ProviderHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[h.ProviderID] = h
}

// Health returns the latest health observation for a provider.
func (r *Registry) Health(id string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[id]
	return h, ok
}

// HealthSnapshot returns the latest observation of every checked provider,
// sorted by provider id.
func (r *Registry) HealthSnapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.health))
	for _, h := range r.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

// isHealthy treats providers that were never checked as healthy.
func (r *Registry) isHealthy(id string) bool {
	h, ok := r.health[id]
	return !ok || h.Status == StatusHealthy
}

// RecordOutcome records the result of one execution against a provider.
func (r *Registry) RecordOutcome(id string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.outcomes[id]
	if !ok {
		w = newOutcomeWindow(r.window)
		r.outcomes[id] = w
	}
	w.add(success)
}

// ErrorRate returns the percentage of failed executions in the recent
// window, or 0 when nothing was recorded.
func (r *Registry) ErrorRate(id string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.outcomes[id]
	if !ok {
		return 0
	}
	return w.errorRate()
}

// outcomeWindow is a fixed-size ring of execution outcomes.
type outcomeWindow struct {
	results  []bool
	next     int
	count    int
	failures int
}

func newOutcomeWindow(size int) *outcomeWindow {
	return &outcomeWindow{results: make([]bool, size)}
}

func (w *outcomeWindow) add(success bool) {
	if w.count == len(w.results) {
		if !w.results[w.next] {
			w.failures--
		}
	} else {
		w.count++
	}
	w.results[w.next] = success
	if !success {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.results)
}

func (w *outcomeWindow) errorRate() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.count) * 100
}
