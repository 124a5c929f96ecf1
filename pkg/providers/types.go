package providers

import (
	"strings"
	"time"
)

// Kind distinguishes self-hosted providers from hosted, metered ones.
type Kind string

const (
	// KindEdge is a self-hosted provider, typically free to call.
	KindEdge Kind = "edge"
	// KindCloud is a hosted, metered provider.
	KindCloud Kind = "cloud"
)

// Capability is a named model feature used to filter candidates.
type Capability string

const (
	CapFunctionCalling Capability = "function_calling"
	CapVision          Capability = "vision"
	CapCodeInterpreter Capability = "code_interpreter"
	CapStreaming       Capability = "streaming"
	CapEmbeddings      Capability = "embeddings"
)

// Model is an inference configuration offered by a provider.
type Model struct {
	ID              string
	ContextWindow   int
	InputCostPer1K  float64
	OutputCostPer1K float64
	MaxOutputTokens int
	Capabilities    []Capability
}

// Has reports whether the model carries capability c.
func (m *Model) Has(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HasAll reports whether the model carries every capability in cs.
func (m *Model) HasAll(cs []Capability) bool {
	for _, c := range cs {
		if !m.Has(c) {
			return false
		}
	}
	return true
}

// RateLimits are per-provider ceilings. Zero means unlimited.
type RateLimits struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
	TokensPerDay      int
}

// CostTable holds provider-wide pricing. Per-1K rates apply to models that
// carry no pricing of their own; surcharges apply per use.
type CostTable struct {
	InputPer1K      float64
	OutputPer1K     float64
	ImageAnalysis   float64
	FunctionCalling float64
}

// Capabilities are provider-wide features. Boolean flags are inherited by
// every model of the provider when the catalogue is built.
type Capabilities struct {
	FunctionCalling bool
	Vision          bool
	CodeInterpreter bool
	Streaming       bool
	Embeddings      bool

	// Languages the provider serves. Empty means unrestricted.
	Languages []string

	MaxConcurrent int
}

// Supports reports whether every language in langs is served.
func (c *Capabilities) Supports(langs []string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, want := range langs {
		found := false
		for _, have := range c.Languages {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Connection holds transport settings.
type Connection struct {
	BaseURL        string
	CompletionPath string
	APIKey         string
	Timeout        time.Duration
	RetryAttempts  int
	Headers        map[string]string
}

// Provider is a source of AI inference. Providers are created at startup
// and are immutable afterwards except for Enabled.
type Provider struct {
	ID           string
	Name         string
	Kind         Kind
	Enabled      bool
	Models       []Model
	RateLimits   RateLimits
	Costs        CostTable
	Capabilities Capabilities
	Connection   Connection

	// HealthPath is an optional probe path appended to Connection.BaseURL.
	HealthPath string
}

// HasCredential reports whether a credential is configured.
func (p *Provider) HasCredential() bool {
	return p.Connection.APIKey != ""
}

// Model returns the model with the given id.
func (p *Provider) Model(id string) (*Model, bool) {
	for i := range p.Models {
		if p.Models[i].ID == id {
			return &p.Models[i], true
		}
	}
	return nil, false
}

// HasCapability reports whether any model of p carries c.
func (p *Provider) HasCapability(c Capability) bool {
	for i := range p.Models {
		if p.Models[i].Has(c) {
			return true
		}
	}
	return false
}

// MinInputCost returns the lowest input rate per 1K tokens across models.
func (p *Provider) MinInputCost() float64 {
	if len(p.Models) == 0 {
		return 0
	}
	lowest := p.inputRate(&p.Models[0])
	for i := 1; i < len(p.Models); i++ {
		if r := p.inputRate(&p.Models[i]); r < lowest {
			lowest = r
		}
	}
	return lowest
}

func (p *Provider) inputRate(m *Model) float64 {
	if m.InputCostPer1K == 0 && m.OutputCostPer1K == 0 {
		return p.Costs.InputPer1K
	}
	return m.InputCostPer1K
}

func (p *Provider) outputRate(m *Model) float64 {
	if m.InputCostPer1K == 0 && m.OutputCostPer1K == 0 {
		return p.Costs.OutputPer1K
	}
	return m.OutputCostPer1K
}

// Clone returns a deep copy of p.
func (p *Provider) Clone() *Provider {
	c := *p
	c.Models = make([]Model, len(p.Models))
	for i, m := range p.Models {
		m.Capabilities = append([]Capability(nil), m.Capabilities...)
		c.Models[i] = m
	}
	c.Capabilities.Languages = append([]string(nil), p.Capabilities.Languages...)
	if p.Connection.Headers != nil {
		c.Connection.Headers = make(map[string]string, len(p.Connection.Headers))
		for k, v := range p.Connection.Headers {
			c.Connection.Headers[k] = v
		}
	}
	return &c
}

// HealthStatus is the outcome of a health check.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusDown     HealthStatus = "down"
)

// ProviderHealth is the latest health observation for one provider.
// It is overwritten every cycle.
type ProviderHealth struct {
	ProviderID string        `json:"provider_id"`
	Status     HealthStatus  `json:"status"`
	Latency    time.Duration `json:"latency"`
	ErrorRate  float64       `json:"error_rate"`
	LastCheck  time.Time     `json:"last_check"`
	Message    string        `json:"message,omitempty"`
}

// Requirements filter and order candidates in BestProviders.
type Requirements struct {
	Capabilities []Capability
	Languages    []string

	// MaxCost drops providers whose cheapest model input rate per 1K
	// tokens exceeds it. Zero disables the filter.
	MaxCost float64

	PreferEdge bool
	ExcludeIDs []string
}

// ModelRequest drives SelectModel.
type ModelRequest struct {
	// Model pins a model id. It is honoured only if it passes the filters.
	Model           string
	Capabilities    []Capability
	EstimatedTokens int
}

// Extras are per-use surcharges added to a cost estimate.
type Extras struct {
	Images        int
	FunctionCalls int
}
