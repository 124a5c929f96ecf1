package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

// MockAdapter is a scriptable providers.Adapter. By default it answers
// with a fixed completion; SetError makes every call fail and SetDelay
// slows calls down while still honouring cancellation.
type MockAdapter struct {
	name string

	mu       sync.Mutex
	err      error
	delay    time.Duration
	content  string
	tokens   providers.TokenUsage
	calls    int
	requests []providers.ExecuteRequest
}

// NewMockAdapter creates an adapter answering "mock response from <name>".
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:    name,
		content: "mock response from " + name,
		tokens:  providers.TokenUsage{Input: 100, Output: 50},
	}
}

// SetError makes every subsequent call fail with err (nil restores success).
func (m *MockAdapter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay delays every subsequent call.
func (m *MockAdapter) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetTokens sets the token usage reported by successful calls.
func (m *MockAdapter) SetTokens(input, output int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = providers.TokenUsage{Input: input, Output: output}
}

// Calls returns the number of Execute calls.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request received.
func (m *MockAdapter) Requests() []providers.ExecuteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providers.ExecuteRequest(nil), m.requests...)
}

// Execute implements providers.Adapter.
func (m *MockAdapter) Execute(ctx context.Context, req providers.ExecuteRequest) (*providers.ExecuteResult, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	err, delay, content, tokens := m.err, m.delay, m.content, m.tokens
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}
	return &providers.ExecuteResult{Content: content, Tokens: tokens}, nil
}

// EdgeProvider returns a free edge provider with one general model.
func EdgeProvider(id string) *providers.Provider {
	return &providers.Provider{
		ID:      id,
		Name:    id,
		Kind:    providers.KindEdge,
		Enabled: true,
		Models: []providers.Model{
			{ID: id + "-model", ContextWindow: 8192, MaxOutputTokens: 2048},
		},
		RateLimits:   providers.RateLimits{RequestsPerMinute: 1000, TokensPerMinute: 1000000},
		Capabilities: providers.Capabilities{Languages: []string{"es", "en", "fr"}},
		Connection:   providers.Connection{BaseURL: "http://localhost:8000", Timeout: 5 * time.Second},
	}
}

// CloudProvider returns a credentialed cloud provider with one model priced
// at the given input/output rates per 1K tokens.
func CloudProvider(id string, input, output float64, caps ...providers.Capability) *providers.Provider {
	return &providers.Provider{
		ID:      id,
		Name:    id,
		Kind:    providers.KindCloud,
		Enabled: true,
		Models: []providers.Model{
			{
				ID:              id + "-model",
				ContextWindow:   128000,
				InputCostPer1K:  input,
				OutputCostPer1K: output,
				MaxOutputTokens: 4096,
				Capabilities:    caps,
			},
		},
		RateLimits: providers.RateLimits{RequestsPerMinute: 500, TokensPerMinute: 150000},
		Connection: providers.Connection{
			BaseURL: "https://" + id + ".example.com",
			APIKey:  "test-key",
			Timeout: 5 * time.Second,
		},
	}
}

// NewTestRegistry registers the given providers in a fresh registry.
func NewTestRegistry(ps ...*providers.Provider) (*providers.Registry, error) {
	r := providers.NewRegistry(0)
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}
