package providers

import (
	"fmt"
	"sort"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

// FromConfig converts one provider entry of the configuration into a
// Provider. Provider-wide capability flags are inherited by every model.
func FromConfig(id string, pc config.ProviderConfig) *Provider {
	p := &Provider{
		ID:         id,
		Name:       pc.Name,
		Kind:       Kind(pc.Kind),
		Enabled:    config.BoolValue(pc.Enabled, true),
		HealthPath: pc.HealthPath,
		RateLimits: RateLimits{
			RequestsPerMinute: pc.RateLimits.RequestsPerMinute,
			TokensPerMinute:   pc.RateLimits.TokensPerMinute,
			RequestsPerDay:    pc.RateLimits.RequestsPerDay,
			TokensPerDay:      pc.RateLimits.TokensPerDay,
		},
		Costs: CostTable{
			InputPer1K:      pc.Costs.InputPer1K,
			OutputPer1K:     pc.Costs.OutputPer1K,
			ImageAnalysis:   pc.Costs.ImageAnalysis,
			FunctionCalling: pc.Costs.FunctionCalling,
		},
		Capabilities: Capabilities{
			FunctionCalling: pc.Capabilities.FunctionCalling,
			Vision:          pc.Capabilities.Vision,
			CodeInterpreter: pc.Capabilities.CodeInterpreter,
			Streaming:       pc.Capabilities.Streaming,
			Embeddings:      pc.Capabilities.Embeddings,
			Languages:       append([]string(nil), pc.Capabilities.Languages...),
			MaxConcurrent:   pc.Capabilities.MaxConcurrent,
		},
		Connection: Connection{
			BaseURL:        pc.Connection.BaseURL,
			CompletionPath: pc.Connection.CompletionPath,
			APIKey:         pc.Connection.APIKey,
			Timeout:        pc.Connection.Timeout,
			RetryAttempts:  pc.Connection.RetryAttempts,
			Headers:        pc.Connection.Headers,
		},
	}
	if p.Name == "" {
		p.Name = id
	}

	inherited := p.inheritedCapabilities()
	for _, mc := range pc.Models {
		m := Model{
			ID:              mc.ID,
			ContextWindow:   mc.ContextWindow,
			InputCostPer1K:  mc.InputCostPer1K,
			OutputCostPer1K: mc.OutputCostPer1K,
			MaxOutputTokens: mc.MaxOutputTokens,
		}
		for _, c := range mc.Capabilities {
			m.Capabilities = appendUnique(m.Capabilities, Capability(c))
		}
		for _, c := range inherited {
			m.Capabilities = appendUnique(m.Capabilities, c)
		}
		p.Models = append(p.Models, m)
	}

	return p
}

// RegisterAll loads every configured provider into r, in id order.
func RegisterAll(r *Registry, providers map[string]config.ProviderConfig) error {
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := r.Register(FromConfig(id, providers[id])); err != nil {
			return fmt.Errorf("failed to register provider %q: %w", id, err)
		}
	}
	return nil
}

func (p *Provider) inheritedCapabilities() []Capability {
	var caps []Capability
	if p.Capabilities.FunctionCalling {
		caps = append(caps, CapFunctionCalling)
	}
	if p.Capabilities.Vision {
		caps = append(caps, CapVision)
	}
	if p.Capabilities.CodeInterpreter {
		caps = append(caps, CapCodeInterpreter)
	}
	if p.Capabilities.Streaming {
		caps = append(caps, CapStreaming)
	}
	if p.Capabilities.Embeddings {
		caps = append(caps, CapEmbeddings)
	}
	return caps
}

func appendUnique(caps []Capability, c Capability) []Capability {
	for _, have := range caps {
		if have == c {
			return caps
		}
	}
	return append(caps, c)
}
