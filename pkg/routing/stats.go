package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats counts routing outcomes. Counters are updated atomically; per-key
// counters live in sync.Maps.
type Stats struct {
	total     atomic.Int64
	succeeded atomic.Int64
	fallbacks atomic.Int64

	perProvider sync.Map // map[string]*atomic.Int64
	perClass    sync.Map // map[string]*atomic.Int64

	mu        sync.RWMutex
	lastReset time.Time
}

// NewStats creates an empty tracker.
func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

func increment(m *sync.Map, key string) {
	val, _ := m.LoadOrStore(key, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func snapshot(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

func (s *Stats) recordSuccess(provider string, fallback bool) {
	s.total.Add(1)
	s.succeeded.Add(1)
	if fallback {
		s.fallbacks.Add(1)
	}
	increment(&s.perProvider, provider)
}

func (s *Stats) recordFailure(class string) {
	s.total.Add(1)
	increment(&s.perClass, class)
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Total       int64            `json:"total"`
	Succeeded   int64            `json:"succeeded"`
	Fallbacks   int64            `json:"fallbacks"`
	PerProvider map[string]int64 `json:"per_provider"`
	Errors      map[string]int64 `json:"errors"`
	Since       time.Time        `json:"since"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	since := s.lastReset
	s.mu.RUnlock()

	return StatsSnapshot{
		Total:       s.total.Load(),
		Succeeded:   s.succeeded.Load(),
		Fallbacks:   s.fallbacks.Load(),
		PerProvider: snapshot(&s.perProvider),
		Errors:      snapshot(&s.perClass),
		Since:       since,
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.total.Store(0)
	s.succeeded.Store(0)
	s.fallbacks.Store(0)
	s.perProvider.Range(func(key, _ any) bool {
		s.perProvider.Delete(key)
		return true
	})
	s.perClass.Range(func(key, _ any) bool {
		s.perClass.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastReset = time.Now()
	s.mu.Unlock()
}
