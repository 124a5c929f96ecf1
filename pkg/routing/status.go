package routing

// ProviderStatus returns every registered provider with its last health
// check and its current rate-limit usage, sorted by id.
func (e *Engine) ProviderStatus() []ProviderStatus {
	list := e.registry.List()
	out := make([]ProviderStatus, 0, len(list))
	for _, p := range list {
		st := ProviderStatus{
			ID:      p.ID,
			Name:    p.Name,
			Kind:    p.Kind,
			Enabled: p.Enabled,
			Models:  make([]string, len(p.Models)),
			Usage:   e.limiter.Usage(p.ID),
		}
		for i, m := range p.Models {
			st.Models[i] = m.ID
		}
		if h, ok := e.registry.Health(p.ID); ok {
			st.Health = h
		} else {
			st.Health.ProviderID = p.ID
		}
		out = append(out, st)
	}
	return out
}
