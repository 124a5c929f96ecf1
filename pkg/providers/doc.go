// Package providers holds the provider catalogue and everything needed to
// pick, price and reach an AI backend.
//
// # Overview
//
// A Provider is a source of inference, either edge (self-hosted) or cloud
// (hosted, metered), offering an ordered list of Models. The Registry is
// the single catalogue of providers, built once at startup from
// configuration:
//
//	registry := providers.NewRegistry(cfg.Health.OutcomeWindow)
//	if err := providers.RegisterAll(registry, cfg.Providers); err != nil {
//	    return err
//	}
//
// # Candidate Selection
//
// BestProviders filters enabled providers by capabilities, languages and
// maximum input rate, and orders the survivors by edge preference, health
// and minimum input cost. The full ordered list is returned so the routing
// engine can walk it until a candidate passes budget and rate checks.
//
// SelectModel picks a model of one provider: capabilities and context
// window filter, a pinned model wins if it qualifies, otherwise the most
// capable and then cheapest model is used.
//
// EstimateCost and Cost price a call:
//
//	cost = in/1000*inputRate + out/1000*outputRate
//	     + images*imageSurcharge + functionCalls*functionSurcharge
//
// # Health Monitoring
//
// Monitor runs a cancellable loop (Start/Stop) that checks every enabled
// provider each interval. Providers with a health path are probed live over
// HTTP with a bounded timeout; cloud providers without one are considered
// healthy when a credential is configured. A probe error or panic marks the
// provider down with a 100% error rate. Reachable providers whose recent
// execution error rate (RecordOutcome) crosses a threshold are degraded.
//
// # Execution
//
// Adapter is the contract for the network call. HTTPAdapter is a generic
// JSON implementation with retries and typed errors (AuthError,
// RateLimitError, TimeoutError, ParseError, ProviderError).
package providers
