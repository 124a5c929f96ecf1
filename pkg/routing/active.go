package routing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/budget"
)

// activeSet holds admitted requests until completion or reaping.
type activeSet struct {
	mu      sync.Mutex
	entries map[string]*ActiveRequest
}

func newActiveSet() *activeSet {
	return &activeSet{entries: make(map[string]*ActiveRequest)}
}

func (s *activeSet) add(a *ActiveRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[a.ID] = a
	return len(s.entries)
}

// switchTo points an entry at the fallback. It reports false if the entry
// was reaped meanwhile.
func (s *activeSet) switchTo(id, provider, model string, res *budget.Reservation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok {
		return false
	}
	a.Provider = provider
	a.Model = model
	a.reservation = res
	return true
}

func (s *activeSet) remove(id string) (*ActiveRequest, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.entries[id]
	delete(s.entries, id)
	return a, len(s.entries)
}

// expire removes and returns entries started before cutoff.
func (s *activeSet) expire(cutoff time.Time) ([]*ActiveRequest, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ActiveRequest
	for id, a := range s.entries {
		if a.Start.Before(cutoff) {
			out = append(out, a)
			delete(s.entries, id)
		}
	}
	return out, len(s.entries)
}

func (s *activeSet) list() []ActiveRequest {
	s.mu.Lock()
	out := make([]ActiveRequest, 0, len(s.entries))
	for _, a := range s.entries {
		out = append(out, *a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ActiveRequests returns the requests currently executing, oldest first.
func (e *Engine) ActiveRequests() []ActiveRequest {
	return e.active.list()
}

// Start runs the active-request reaper until Stop is called or ctx is
// cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.New("routing engine reaper already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.reapLoop(ctx, e.done)

	e.logger.Info("active request reaper started",
		"ttl", e.cfg.ActiveRequestTTL,
		"interval", e.cfg.ReaperInterval,
	)
	return nil
}

// Stop cancels the reaper and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info("active request reaper stopped")
}

func (e *Engine) reapLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Reap()
		}
	}
}

// Reap removes active requests older than the TTL and releases their
// budget reservations. It returns the number of reaped entries.
func (e *Engine) Reap() int {
	expired, remaining := e.active.expire(e.now().Add(-e.cfg.ActiveRequestTTL))
	for _, a := range expired {
		if a.reservation != nil {
			_ = e.guardrails.Release(a.reservation)
		}
		e.logger.Warn("reaped stranded active request",
			"request_id", a.ID,
			"tenant", a.Tenant,
			"provider", a.Provider,
			"age", e.now().Sub(a.Start),
		)
	}
	if len(expired) > 0 && e.metrics != nil {
		e.metrics.SetActiveRequests(remaining)
	}
	return len(expired)
}
