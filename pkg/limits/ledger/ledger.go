package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

// ErrClosed is returned by operations on a closed ledger.
var ErrClosed = errors.New("ledger closed")

// Record is one completed request as persisted in the ledger.
type Record struct {
	RequestID    string
	Tenant       string
	Provider     string
	Model        string
	TokensIn     int
	TokensOut    int
	Cost         float64
	Latency      time.Duration
	FallbackUsed bool
	Timestamp    time.Time
}

func (r Record) validate() error {
	if r.Tenant == "" {
		return fmt.Errorf("record tenant cannot be empty")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("record timestamp cannot be zero")
	}
	return nil
}

// Ledger is the durable record of spend. The routing engine reads a
// tenant's monthly usage before admitting a request and appends a record
// after every completion; startup hydration reads Totals.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	// Append stores a record.
	Append(ctx context.Context, r Record) error

	// MonthlyUsage returns the tenant's summed cost in the calendar month
	// (UTC) containing at.
	MonthlyUsage(ctx context.Context, tenant string, at time.Time) (float64, error)

	// Totals returns the summed cost per tenant of records at or after
	// since.
	Totals(ctx context.Context, since time.Time) (map[string]float64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// monthRange returns the UTC calendar month containing at.
func monthRange(at time.Time) (start, end time.Time) {
	at = at.UTC()
	start = time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Open builds the ledger selected by cfg.Backend.
func Open(cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case "postgres":
		return NewPostgres(PostgresConfig{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}
