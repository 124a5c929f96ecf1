package providers

import (
	"fmt"
	"sort"
)

// BestProviders returns every enabled provider satisfying req, ordered by
// edge preference (when requested), then health (healthy first), then
// ascending minimum input cost. Callers walk the list until a candidate is
// admitted.
func (r *Registry) BestProviders(req Requirements) []*Provider {
	excluded := make(map[string]bool, len(req.ExcludeIDs))
	for _, id := range req.ExcludeIDs {
		excluded[id] = true
	}

	r.mu.RLock()
	type candidate struct {
		p       *Provider
		healthy bool
		minCost float64
	}
	var candidates []candidate
	for _, p := range r.providers {
		if !p.Enabled || excluded[p.ID] {
			continue
		}
		if !supportsAll(p, req.Capabilities) {
			continue
		}
		if len(req.Languages) > 0 && !p.Capabilities.Supports(req.Languages) {
			continue
		}
		minCost := p.MinInputCost()
		if req.MaxCost > 0 && minCost > req.MaxCost {
			continue
		}
		candidates = append(candidates, candidate{
			p:       p.Clone(),
			healthy: r.isHealthy(p.ID),
			minCost: minCost,
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if req.PreferEdge {
			aEdge, bEdge := a.p.Kind == KindEdge, b.p.Kind == KindEdge
			if aEdge != bEdge {
				return aEdge
			}
		}
		if a.healthy != b.healthy {
			return a.healthy
		}
		if a.minCost != b.minCost {
			return a.minCost < b.minCost
		}
		return a.p.ID < b.p.ID
	})

	out := make([]*Provider, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out
}

// supportsAll reports whether every capability is carried by at least one
// model of p.
func supportsAll(p *Provider, caps []Capability) bool {
	for _, c := range caps {
		if !p.HasCapability(c) {
			return false
		}
	}
	return true
}

// SelectModel picks the model of p to use for req. Models lacking a
// required capability or whose context window is smaller than the token
// estimate are skipped. A pinned model that qualifies wins; otherwise the
// model with the most capabilities, then the lowest input rate, is chosen.
func (r *Registry) SelectModel(p *Provider, req ModelRequest) (*Model, error) {
	var qualified []*Model
	for i := range p.Models {
		m := &p.Models[i]
		if !m.HasAll(req.Capabilities) {
			continue
		}
		if m.ContextWindow < req.EstimatedTokens {
			continue
		}
		if req.Model != "" && m.ID == req.Model {
			out := *m
			return &out, nil
		}
		qualified = append(qualified, m)
	}

	if len(qualified) == 0 {
		return nil, fmt.Errorf("%w: provider %q, %d tokens", ErrNoModel, p.ID, req.EstimatedTokens)
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i], qualified[j]
		if len(a.Capabilities) != len(b.Capabilities) {
			return len(a.Capabilities) > len(b.Capabilities)
		}
		return p.inputRate(a) < p.inputRate(b)
	})

	out := *qualified[0]
	return &out, nil
}

// EstimateCost prices a call: tokensIn/1000*input rate plus
// tokensOut/1000*output rate plus per-use surcharges for images and
// function calls.
func (r *Registry) EstimateCost(providerID, modelID string, tokensIn, tokensOut int, extras Extras) (float64, error) {
	r.mu.RLock()
	p, ok := r.providers[providerID]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}

	m, ok := p.Model(modelID)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrModelNotFound, providerID, modelID)
	}

	return Cost(p, m, tokensIn, tokensOut, extras), nil
}

// Cost prices a call against model m of provider p.
func Cost(p *Provider, m *Model, tokensIn, tokensOut int, extras Extras) float64 {
	cost := float64(tokensIn)/1000*p.inputRate(m) + float64(tokensOut)/1000*p.outputRate(m)
	cost += float64(extras.Images) * p.Costs.ImageAnalysis
	cost += float64(extras.FunctionCalls) * p.Costs.FunctionCalling
	return cost
}
