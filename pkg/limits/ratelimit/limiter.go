package ratelimit

import (
	"sync"
	"time"
)

// Window lengths.
const (
	DefaultWindow    = time.Minute
	DefaultDayWindow = 24 * time.Hour
)

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithWindow overrides the minute window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// Limiter enforces per-provider fixed windows:
//
//   - requests and tokens per minute window
//   - requests and tokens per day window, when configured
//   - concurrent in-flight executions, when configured
//
// Each provider has its own counter and mutex, so checks against different
// providers never contend. Providers without configured limits are
// unlimited.
type Limiter struct {
	mu       sync.RWMutex
	counters map[string]*counter

	window    time.Duration
	dayWindow time.Duration
	now       func() time.Time
}

type counter struct {
	mu     sync.Mutex
	limits Limits
	minute fixedWindow
	day    fixedWindow

	inflight *ConcurrentLimiter
}

type fixedWindow struct {
	requests int64
	tokens   int64
	resetAt  time.Time
}

// roll starts a new window when the current one has elapsed.
func (w *fixedWindow) roll(now time.Time, length time.Duration) {
	if !now.Before(w.resetAt) {
		w.requests = 0
		w.tokens = 0
		w.resetAt = now.Add(length)
	}
}

// New creates a Limiter with no providers configured.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		counters:  make(map[string]*counter),
		window:    DefaultWindow,
		dayWindow: DefaultDayWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimits installs or replaces the limits of a provider. Existing window
// counters are kept.
func (l *Limiter) SetLimits(providerID string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[providerID]
	if !ok {
		c = &counter{}
		l.counters[providerID] = c
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = limits
	switch {
	case limits.MaxConcurrent <= 0:
		c.inflight = nil
	case c.inflight == nil || c.inflight.Limit() != int64(limits.MaxConcurrent):
		c.inflight = NewConcurrentLimiter(limits.MaxConcurrent)
	}
}

// Limits returns the limits configured for a provider.
func (l *Limiter) Limits(providerID string) (Limits, bool) {
	c := l.counter(providerID)
	if c == nil {
		return Limits{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits, true
}

func (l *Limiter) counter(providerID string) *counter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[providerID]
}

// CheckAndConsume admits one request of the given estimated token count
// against the provider's windows and counts it. It returns a *Denial when
// any limit would be exceeded, in which case nothing is counted.
func (l *Limiter) CheckAndConsume(providerID string, tokens int) error {
	return l.check(providerID, tokens, true)
}

// Peek reports whether CheckAndConsume would admit the request without
// counting it.
func (l *Limiter) Peek(providerID string, tokens int) error {
	return l.check(providerID, tokens, false)
}

func (l *Limiter) check(providerID string, tokens int, consume bool) error {
	c := l.counter(providerID)
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := l.now()
	c.minute.roll(now, l.window)
	if c.limits.hasDaily() {
		c.day.roll(now, l.dayWindow)
	}

	n := int64(tokens)
	lim := c.limits
	deny := func(reason Reason, limit, current int64, resetAt time.Time) *Denial {
		return &Denial{
			Provider:   providerID,
			Reason:     reason,
			Limit:      limit,
			Current:    current,
			RetryAfter: resetAt.Sub(now),
		}
	}

	if lim.RequestsPerMinute > 0 && c.minute.requests+1 > int64(lim.RequestsPerMinute) {
		return deny(ReasonRequestRate, int64(lim.RequestsPerMinute), c.minute.requests, c.minute.resetAt)
	}
	if lim.TokensPerMinute > 0 && c.minute.tokens+n > int64(lim.TokensPerMinute) {
		return deny(ReasonTokenRate, int64(lim.TokensPerMinute), c.minute.tokens, c.minute.resetAt)
	}
	if lim.RequestsPerDay > 0 && c.day.requests+1 > int64(lim.RequestsPerDay) {
		return deny(ReasonDailyRequests, int64(lim.RequestsPerDay), c.day.requests, c.day.resetAt)
	}
	if lim.TokensPerDay > 0 && c.day.tokens+n > int64(lim.TokensPerDay) {
		return deny(ReasonDailyTokens, int64(lim.TokensPerDay), c.day.tokens, c.day.resetAt)
	}

	if consume {
		c.minute.requests++
		c.minute.tokens += n
		c.day.requests++
		c.day.tokens += n
	}
	return nil
}

// Acquire takes an execution slot for the provider. The returned release
// func must be called once the execution finishes; it is a no-op when the
// provider has no concurrency limit.
func (l *Limiter) Acquire(providerID string) (release func(), err error) {
	c := l.counter(providerID)
	if c == nil {
		return func() {}, nil
	}

	c.mu.Lock()
	inflight := c.inflight
	c.mu.Unlock()

	if inflight == nil {
		return func() {}, nil
	}
	if !inflight.Acquire() {
		return nil, &Denial{
			Provider: providerID,
			Reason:   ReasonConcurrencyLimit,
			Limit:    inflight.Limit(),
			Current:  inflight.Current(),
		}
	}

	var once sync.Once
	return func() { once.Do(inflight.Release) }, nil
}

// Usage returns a snapshot of a provider's counters. Elapsed windows read
// as zero.
func (l *Limiter) Usage(providerID string) Usage {
	c := l.counter(providerID)
	if c == nil {
		return Usage{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := l.now()
	var u Usage
	if now.Before(c.minute.resetAt) {
		u.Requests = c.minute.requests
		u.Tokens = c.minute.tokens
		u.WindowResetAt = c.minute.resetAt
	}
	if now.Before(c.day.resetAt) {
		u.DailyRequests = c.day.requests
		u.DailyTokens = c.day.tokens
		u.DayResetAt = c.day.resetAt
	}
	if c.inflight != nil {
		u.InFlight = c.inflight.Current()
	}
	return u
}

// Reset clears the counters of a provider.
func (l *Limiter) Reset(providerID string) {
	c := l.counter(providerID)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minute = fixedWindow{}
	c.day = fixedWindow{}
}
