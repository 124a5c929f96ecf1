package budget

// Admission groups the reservations attempted for one request. A denial
// repeated across candidates (same alert type and period) is published
// once; later repeats only return the decision. An Admission is not safe
// for concurrent use.
type Admission struct {
	g      *Guardrails
	tenant string
	denied map[denialKey]bool
}

type denialKey struct {
	typ    AlertType
	period Period
}

// Admission starts a reservation sequence for tenant.
func (g *Guardrails) Admission(tenant string) *Admission {
	return &Admission{g: g, tenant: tenant, denied: make(map[denialKey]bool)}
}

// Reserve behaves like Guardrails.Reserve except for repeated denials.
func (a *Admission) Reserve(estimated float64, provider, model string) (*Reservation, Decision) {
	res, d := a.g.reserve(a.tenant, estimated, provider, model)
	if !d.Allowed {
		k := denialKey{typ: d.Type, period: d.Period}
		if a.denied[k] {
			return nil, d
		}
		a.denied[k] = true
	}
	a.g.emit(a.tenant, d, provider, model)
	return res, d
}
