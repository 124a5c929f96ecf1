package providers

import (
	"context"
	"sync"
)

// ExecuteRequest is what the routing engine sends to a provider.
type ExecuteRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// TokenUsage counts the tokens actually consumed by a call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// ExecuteResult is a provider's answer.
type ExecuteResult struct {
	Content string     `json:"content"`
	Tokens  TokenUsage `json:"tokens"`
}

// Adapter performs the network call to one AI backend. Implementations
// must honour ctx cancellation.
type Adapter interface {
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)

// Execute implements Adapter.
func (f AdapterFunc) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	return f(ctx, req)
}

// AdapterSet maps provider ids to adapters. It is safe for concurrent use.
type AdapterSet struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewAdapterSet creates an empty set.
func NewAdapterSet() *AdapterSet {
	return &AdapterSet{adapters: make(map[string]Adapter)}
}

// Set binds an adapter to a provider id.
func (s *AdapterSet) Set(providerID string, a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[providerID] = a
}

// Adapter returns the adapter bound to a provider id.
func (s *AdapterSet) Adapter(providerID string) (Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[providerID]
	return a, ok
}
