package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// sqlStore holds the queries shared by the SQL backends. Timestamps are
// stored as Unix nanoseconds so both dialects compare them the same way.
type sqlStore struct {
	db          *sql.DB
	placeholder func(n int) string

	mu     sync.RWMutex
	closed bool
}

// rebind rewrites ? placeholders for the dialect.
func (s *sqlStore) rebind(query string) string {
	if s.placeholder == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) append(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO usage_records
			(request_id, tenant, provider, model, tokens_in, tokens_out, cost, latency_ms, fallback_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.RequestID,
		r.Tenant,
		r.Provider,
		r.Model,
		r.TokensIn,
		r.TokensOut,
		r.Cost,
		r.Latency.Milliseconds(),
		r.FallbackUsed,
		r.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}
	return nil
}

func (s *sqlStore) monthlyUsage(ctx context.Context, tenant string, at time.Time) (float64, error) {
	start, end := monthRange(at)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT SUM(cost) FROM usage_records
		WHERE tenant = ? AND created_at >= ? AND created_at < ?`),
		tenant, start.UnixNano(), end.UnixNano(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query monthly usage: %w", err)
	}
	return total.Float64, nil
}

func (s *sqlStore) totals(ctx context.Context, since time.Time) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT tenant, SUM(cost) FROM usage_records
		WHERE created_at >= ?
		GROUP BY tenant`),
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var (
			tenant string
			total  float64
		)
		if err := rows.Scan(&tenant, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		totals[tenant] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return totals, nil
}

// markClosed flips the closed flag and reports whether this call did it.
func (s *sqlStore) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}
