package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory keeps records in process memory. It is the default backend and
// loses everything on restart.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Ledger.
func (m *Memory) Append(_ context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, r)
	return nil
}

// MonthlyUsage implements Ledger.
func (m *Memory) MonthlyUsage(_ context.Context, tenant string, at time.Time) (float64, error) {
	start, end := monthRange(at)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}

	var total float64
	for _, r := range m.records {
		if r.Tenant == tenant && !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			total += r.Cost
		}
	}
	return total, nil
}

// Totals implements Ledger.
func (m *Memory) Totals(_ context.Context, since time.Time) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	totals := make(map[string]float64)
	for _, r := range m.records {
		if !r.Timestamp.Before(since) {
			totals[r.Tenant] += r.Cost
		}
	}
	return totals, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Ping implements Ledger.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Ledger.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
