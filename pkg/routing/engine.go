package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/budget"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ledger"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ratelimit"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Metrics receives routing outcomes.
type Metrics interface {
	RecordRequest(provider, model, status string, duration time.Duration, tokensIn, tokensOut int)
	RecordRouteError(kind string)
	RecordFallback(from, to string)
	RecordProviderError(provider, errorType string)
	RecordRateLimitDenial(provider, reason string)
	SetActiveRequests(n int)
}

// Ledger is the durable usage store consulted before admission and
// appended to after completion.
type Ledger interface {
	MonthlyUsage(ctx context.Context, tenant string, at time.Time) (float64, error)
	Append(ctx context.Context, r ledger.Record) error
}

// Config tunes the engine.
type Config struct {
	PreferEdge       bool
	FallbackEnabled  bool
	DefaultMaxTokens int
	CharsPerToken    int
	ActiveRequestTTL time.Duration
	ReaperInterval   time.Duration
}

// ConfigFrom converts the routing section of the configuration file.
func ConfigFrom(cfg config.RoutingConfig) Config {
	return Config{
		PreferEdge:       config.BoolValue(cfg.PreferEdge, config.DefaultPreferEdge),
		FallbackEnabled:  config.BoolValue(cfg.FallbackEnabled, config.DefaultFallbackEnabled),
		DefaultMaxTokens: cfg.DefaultMaxTokens,
		CharsPerToken:    cfg.CharsPerToken,
		ActiveRequestTTL: cfg.ActiveRequestTTL,
		ReaperInterval:   cfg.ReaperInterval,
	}
}

func (c *Config) applyDefaults() {
	if c.DefaultMaxTokens <= 0 {
		c.DefaultMaxTokens = config.DefaultMaxTokens
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = config.DefaultCharsPerToken
	}
	if c.ActiveRequestTTL <= 0 {
		c.ActiveRequestTTL = config.DefaultActiveRequestTTL
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = config.DefaultReaperInterval
	}
}

// Option customises an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLedger attaches the usage ledger.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine routes requests to providers. It is safe for concurrent use.
type Engine struct {
	registry   *providers.Registry
	limiter    *ratelimit.Limiter
	guardrails *budget.Guardrails
	adapters   *providers.AdapterSet

	ledger   Ledger
	metrics  Metrics
	logger   *slog.Logger
	validate *validator.Validate
	cfg      Config
	now      func() time.Time

	active *activeSet
	stats  *Stats

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine. The limiter is configured from every provider in
// the registry.
func New(registry *providers.Registry, limiter *ratelimit.Limiter, guardrails *budget.Guardrails, adapters *providers.AdapterSet, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		limiter:    limiter,
		guardrails: guardrails,
		adapters:   adapters,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg: Config{
			PreferEdge:      config.DefaultPreferEdge,
			FallbackEnabled: config.DefaultFallbackEnabled,
		},
		now:    time.Now,
		active: newActiveSet(),
		stats:  NewStats(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg.applyDefaults()
	if e.logger == nil {
		e.logger = slog.Default()
	}

	limiter.Configure(registry.List())
	return e
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// estimate is the token forecast of a request.
type estimate struct {
	tokensIn  int
	tokensOut int
	extras    providers.Extras
}

func (x estimate) total() int { return x.tokensIn + x.tokensOut }

func (e *Engine) estimateTokens(req *AIRequest) estimate {
	out := req.MaxTokens
	if out == 0 {
		out = e.cfg.DefaultMaxTokens
	}
	in := (len(req.Prompt) + e.cfg.CharsPerToken - 1) / e.cfg.CharsPerToken
	return estimate{
		tokensIn:  in,
		tokensOut: out,
		extras:    providers.Extras{Images: req.Images, FunctionCalls: req.FunctionCalls},
	}
}

// Route validates req, admits it against a provider and executes it, with
// a single fallback attempt when the primary fails. On failure it returns
// an *Error and no response.
func (e *Engine) Route(ctx context.Context, req *AIRequest) (*AIResponse, error) {
	start := e.now()
	if req == nil {
		return nil, e.fail(ctx, "", start, newError(KindValidation, "request is nil"))
	}
	ctx = logging.WithTenant(ctx, req.TenantID)

	resp, err := e.route(ctx, req, start)
	if err != nil {
		return nil, e.fail(ctx, req.Model, start, err)
	}
	return resp, nil
}

func (e *Engine) fail(ctx context.Context, model string, start time.Time, err error) error {
	class := Classify(err)
	e.stats.recordFailure(class)
	if e.metrics != nil {
		e.metrics.RecordRouteError(class)
		e.metrics.RecordRequest("", model, class, e.now().Sub(start), 0, 0)
	}
	logging.FromContext(ctx, e.logger).Warn("route failed",
		"class", class,
		"kind", KindOf(err),
		"error", err,
	)
	return err
}

func (e *Engine) route(ctx context.Context, req *AIRequest, start time.Time) (*AIResponse, error) {
	// Validating
	if err := e.validate.Struct(req); err != nil {
		return nil, &Error{Kind: KindValidation, Message: formatValidation(err), Err: err}
	}
	if err := e.checkMonthlyCap(ctx, req.TenantID); err != nil {
		return nil, err
	}

	// SelectingCandidate
	est := e.estimateTokens(req)
	adm := e.guardrails.Admission(req.TenantID)
	primary, fallback, err := e.selectCandidates(req, est, adm)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	ctx = logging.WithRequestID(ctx, id)
	logger := logging.FromContext(ctx, e.logger)

	n := e.active.add(&ActiveRequest{
		ID:          id,
		Tenant:      req.TenantID,
		Provider:    primary.Provider.ID,
		Model:       primary.Model.ID,
		Start:       start,
		reservation: primary.reservation,
	})
	if e.metrics != nil {
		e.metrics.SetActiveRequests(n)
	}

	logger.Debug("routing request",
		"provider", primary.Provider.ID,
		"model", primary.Model.ID,
		"reason", primary.Reason,
		"estimated_cost", primary.EstimatedCost,
	)

	// Executing(primary)
	used := primary
	result, execErr := e.execute(ctx, req, est, primary)
	if execErr != nil {
		e.release(primary)
		attempts := []Attempt{{Provider: primary.Provider.ID, Model: primary.Model.ID, Error: execErr.Error()}}

		// A caller that went away gets no fallback; nothing more is booked.
		if ctx.Err() != nil {
			e.clearActive(id)
			return nil, &Error{
				Kind:     KindProviderExecution,
				Message:  fmt.Sprintf("provider %s failed and the request was canceled", primary.Provider.ID),
				Err:      errors.Join(execErr, ctx.Err()),
				Attempts: attempts,
			}
		}
		if fallback == nil {
			e.clearActive(id)
			return nil, &Error{
				Kind:     KindProviderExecution,
				Message:  fmt.Sprintf("provider %s failed and no fallback is available", primary.Provider.ID),
				Err:      execErr,
				Attempts: attempts,
			}
		}

		logger.Warn("primary provider failed, trying fallback",
			"provider", primary.Provider.ID,
			"fallback", fallback.Provider.ID,
			"error", execErr,
		)

		// Executing(fallback)
		if rej := e.admit(adm, est, fallback); rej != nil {
			e.clearActive(id)
			return nil, &Error{
				Kind: KindProviderExecution,
				Message: fmt.Sprintf("provider %s failed and fallback %s was not admitted: %s",
					primary.Provider.ID, fallback.Provider.ID, rej.Reason),
				Err:        execErr,
				Attempts:   attempts,
				Rejections: []Rejection{*rej},
			}
		}
		if e.metrics != nil {
			e.metrics.RecordFallback(primary.Provider.ID, fallback.Provider.ID)
		}
		if !e.active.switchTo(id, fallback.Provider.ID, fallback.Model.ID, fallback.reservation) {
			logger.Warn("active request reaped before fallback", "provider", fallback.Provider.ID)
		}

		used = fallback
		var fbErr error
		result, fbErr = e.execute(ctx, req, est, fallback)
		if fbErr != nil {
			e.release(fallback)
			e.clearActive(id)
			attempts = append(attempts, Attempt{Provider: fallback.Provider.ID, Model: fallback.Model.ID, Error: fbErr.Error()})
			return nil, &Error{
				Kind: KindProviderExecution,
				Message: fmt.Sprintf("provider %s and fallback %s both failed",
					primary.Provider.ID, fallback.Provider.ID),
				Err:      errors.Join(execErr, fbErr),
				Attempts: attempts,
			}
		}
	}

	// Completed
	tokensIn, tokensOut := result.Tokens.Input, result.Tokens.Output
	if tokensIn == 0 && tokensOut == 0 {
		tokensIn, tokensOut = est.tokensIn, est.tokensOut
	}
	resp := &AIResponse{
		RequestID:    id,
		Content:      result.Content,
		Provider:     used.Provider.ID,
		Model:        used.Model.ID,
		Tokens:       Tokens{Input: tokensIn, Output: tokensOut},
		Cost:         providers.Cost(used.Provider, used.Model, tokensIn, tokensOut, est.extras),
		Latency:      e.now().Sub(start),
		FallbackUsed: used != primary,
	}

	e.RecordRequestCompletion(ctx, req.TenantID, resp)
	return resp, nil
}

// checkMonthlyCap rejects tenants whose ledger usage already reached the
// monthly limit. Ledger failures are logged and do not block routing; the
// in-memory guardrails still apply.
func (e *Engine) checkMonthlyCap(ctx context.Context, tenant string) error {
	if e.ledger == nil {
		return nil
	}
	limit := e.guardrails.Limits(tenant).MonthlyLimit
	if limit <= 0 {
		return nil
	}

	used, err := e.ledger.MonthlyUsage(ctx, tenant, e.now())
	if err != nil {
		logging.FromContext(ctx, e.logger).Warn("monthly usage lookup failed", "error", err)
		return nil
	}
	if used >= limit {
		return newError(KindCostCapExceeded, "tenant %s monthly usage %.4f reached limit %.4f", tenant, used, limit)
	}
	return nil
}

// candidates returns the ordered provider list for req.
func (e *Engine) candidates(req *AIRequest) []*providers.Provider {
	rq := providers.Requirements{
		Capabilities: req.Capabilities,
		PreferEdge:   e.cfg.PreferEdge || req.Sensitivity == SensitivityHigh,
	}
	if req.Language != "" {
		rq.Languages = []string{req.Language}
	}
	list := e.registry.BestProviders(rq)

	if req.ProviderHint == "" {
		return list
	}
	for i, p := range list {
		if p.ID == req.ProviderHint {
			out := make([]*providers.Provider, 0, len(list))
			out = append(out, p)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

// selectCandidates walks the candidates in order. The first one passing
// model selection, guardrail admission and the rate limiter becomes the
// primary, with its budget reserved and rate counted. The next one that
// would pass both checks is kept as fallback without being admitted.
func (e *Engine) selectCandidates(req *AIRequest, est estimate, adm *budget.Admission) (primary, fallback *Decision, err error) {
	list := e.candidates(req)

	var (
		rejections []Rejection
		withModel  int
	)
	for _, p := range list {
		if _, ok := e.adapters.Adapter(p.ID); !ok {
			rejections = append(rejections, Rejection{Provider: p.ID, Reason: RejectNoAdapter})
			continue
		}

		m, err := e.registry.SelectModel(p, providers.ModelRequest{
			Model:           req.Model,
			Capabilities:    req.Capabilities,
			EstimatedTokens: est.total(),
		})
		if err != nil {
			rejections = append(rejections, Rejection{Provider: p.ID, Reason: RejectNoModel, Detail: err.Error()})
			continue
		}
		withModel++

		cost := providers.Cost(p, m, est.tokensIn, est.tokensOut, est.extras)
		if req.MaxCostLimit > 0 && cost > req.MaxCostLimit {
			rejections = append(rejections, Rejection{
				Provider: p.ID,
				Reason:   RejectMaxCostLimit,
				Detail:   fmt.Sprintf("estimated %.4f above %.4f", cost, req.MaxCostLimit),
			})
			continue
		}

		d := &Decision{Provider: p, Model: m, EstimatedCost: cost, Reason: ReasonBestMatch}
		if req.ProviderHint != "" && p.ID == req.ProviderHint {
			d.Reason = ReasonHint
		}

		if primary == nil {
			if rej := e.admit(adm, est, d); rej != nil {
				rejections = append(rejections, *rej)
				continue
			}
			primary = d
			if !e.cfg.FallbackEnabled {
				break
			}
			continue
		}

		if e.guardrails.Fits(req.TenantID, cost) && e.limiter.Peek(p.ID, est.total()) == nil {
			d.Reason = ReasonFallback
			fallback = d
			break
		}
	}

	if primary != nil {
		return primary, fallback, nil
	}
	if withModel == 0 {
		return nil, nil, &Error{
			Kind:       KindNoSuitableProvider,
			Message:    noProviderMessage(req, len(list)),
			Rejections: rejections,
		}
	}
	return nil, nil, rejectedError(rejections)
}

func noProviderMessage(req *AIRequest, candidates int) string {
	if candidates == 0 {
		parts := []string{"no enabled provider matches"}
		if len(req.Capabilities) > 0 {
			caps := make([]string, len(req.Capabilities))
			for i, c := range req.Capabilities {
				caps[i] = string(c)
			}
			parts = append(parts, "capabilities ["+strings.Join(caps, ", ")+"]")
		}
		if req.Language != "" {
			parts = append(parts, "language "+req.Language)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("none of %d candidates offers a qualifying model", candidates)
}

// rejectedError builds the error for a selection where every candidate
// with a model was refused by admission control. RetryAfter is the
// earliest rate window reset among the refusals.
func rejectedError(rs []Rejection) *Error {
	err := &Error{Kind: KindAllProvidersRejected, Rejections: rs}
	for _, r := range rs {
		if r.Reason == RejectRateLimit && r.retryAfter > 0 && (err.RetryAfter == 0 || r.retryAfter < err.RetryAfter) {
			err.RetryAfter = r.retryAfter
		}
	}

	if onlyRateLimited(rs) {
		err.Message = fmt.Sprintf("all %d admissible candidates are rate limited", countAdmission(rs))
	} else {
		err.Message = fmt.Sprintf("all %d admissible candidates were rejected", countAdmission(rs))
	}
	return err
}

func countAdmission(rs []Rejection) int {
	n := 0
	for _, r := range rs {
		switch r.Reason {
		case RejectBudget, RejectRateLimit, RejectMaxCostLimit:
			n++
		}
	}
	return n
}

// admit reserves budget for d and consumes rate capacity. On any refusal
// nothing stays booked. Budget denials go through the request's admission
// so a cap hit by several candidates alerts once.
func (e *Engine) admit(adm *budget.Admission, est estimate, d *Decision) *Rejection {
	res, bd := adm.Reserve(d.EstimatedCost, d.Provider.ID, d.Model.ID)
	if !bd.Allowed {
		return &Rejection{Provider: d.Provider.ID, Reason: RejectBudget, Detail: bd.Reason}
	}

	if err := e.limiter.CheckAndConsume(d.Provider.ID, est.total()); err != nil {
		_ = e.guardrails.Release(res)
		rej := &Rejection{Provider: d.Provider.ID, Reason: RejectRateLimit, Detail: err.Error()}
		var denial *ratelimit.Denial
		if errors.As(err, &denial) {
			rej.retryAfter = denial.RetryAfter
			if e.metrics != nil {
				e.metrics.RecordRateLimitDenial(d.Provider.ID, string(denial.Reason))
			}
		}
		return rej
	}

	d.reservation = res
	return nil
}

func (e *Engine) release(d *Decision) {
	if d.reservation != nil {
		_ = e.guardrails.Release(d.reservation)
	}
}

func (e *Engine) clearActive(id string) {
	_, n := e.active.remove(id)
	if e.metrics != nil {
		e.metrics.SetActiveRequests(n)
	}
}

// execute calls the provider adapter under the provider's call timeout and
// concurrency ceiling, and records the outcome for health.
func (e *Engine) execute(ctx context.Context, req *AIRequest, est estimate, d *Decision) (*providers.ExecuteResult, error) {
	p := d.Provider
	adapter, ok := e.adapters.Adapter(p.ID)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %s", providers.ErrProviderNotFound, p.ID)
	}

	releaseSlot, err := e.limiter.Acquire(p.ID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordRateLimitDenial(p.ID, string(ratelimit.ReasonConcurrencyLimit))
		}
		return nil, err
	}
	defer releaseSlot()

	if limit := p.Connection.CallTimeout(); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	result, err := adapter.Execute(ctx, providers.ExecuteRequest{
		Prompt:      req.Prompt,
		Model:       d.Model.ID,
		MaxTokens:   est.tokensOut,
		Temperature: req.Temperature,
	})
	if err == nil && result == nil {
		err = &providers.ParseError{Provider: p.ID, Cause: errors.New("adapter returned no result")}
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !providers.IsTimeout(err) {
		err = &providers.TimeoutError{Provider: p.ID, Timeout: p.Connection.CallTimeout()}
	}

	e.registry.RecordOutcome(p.ID, err == nil)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordProviderError(p.ID, executionErrorType(err))
		}
		return nil, err
	}
	return result, nil
}

// RecordRequestCompletion commits the usage of a finished request: the
// budget reservation becomes actual spend, the ledger gets a record, and
// the active entry is removed. A reservation already released by the
// reaper is replaced by unconditional usage recording.
func (e *Engine) RecordRequestCompletion(ctx context.Context, tenant string, resp *AIResponse) {
	logger := logging.FromContext(ctx, e.logger)
	ts := e.now()

	usage := budget.Usage{
		RequestID:    resp.RequestID,
		Tenant:       tenant,
		Provider:     resp.Provider,
		Model:        resp.Model,
		TokensIn:     resp.Tokens.Input,
		TokensOut:    resp.Tokens.Output,
		Cost:         resp.Cost,
		Latency:      resp.Latency,
		FallbackUsed: resp.FallbackUsed,
		Timestamp:    ts,
	}

	a, n := e.active.remove(resp.RequestID)
	if a == nil || a.reservation == nil || e.guardrails.Commit(a.reservation, usage) != nil {
		e.guardrails.RecordUsage(usage)
	}

	if e.ledger != nil {
		err := e.ledger.Append(ctx, ledger.Record{
			RequestID:    resp.RequestID,
			Tenant:       tenant,
			Provider:     resp.Provider,
			Model:        resp.Model,
			TokensIn:     resp.Tokens.Input,
			TokensOut:    resp.Tokens.Output,
			Cost:         resp.Cost,
			Latency:      resp.Latency,
			FallbackUsed: resp.FallbackUsed,
			Timestamp:    ts,
		})
		if err != nil {
			logger.Error("failed to append usage to ledger", "error", err)
		}
	}

	e.stats.recordSuccess(resp.Provider, resp.FallbackUsed)
	if e.metrics != nil {
		e.metrics.SetActiveRequests(n)
		e.metrics.RecordRequest(resp.Provider, resp.Model, "success", resp.Latency, resp.Tokens.Input, resp.Tokens.Output)
	}

	logger.Info("request routed",
		"provider", resp.Provider,
		"model", resp.Model,
		"tokens_in", resp.Tokens.Input,
		"tokens_out", resp.Tokens.Output,
		"cost", resp.Cost,
		"latency", resp.Latency,
		"fallback_used", resp.FallbackUsed,
	)
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
