package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresConfig configures the PostgreSQL ledger.
type PostgresConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Postgres is a ledger shared by several router instances.
type Postgres struct {
	sqlStore
}

// NewPostgres connects, verifies the connection and creates the schema.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p, err := NewPostgresFromDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresFromDB wraps an open database handle and creates the schema.
func NewPostgresFromDB(ctx context.Context, db *sql.DB) (*Postgres, error) {
	p := &Postgres{sqlStore: sqlStore{
		db:          db,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}}
	if err := p.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS usage_records (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		tenant TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		tokens_in INTEGER NOT NULL,
		tokens_out INTEGER NOT NULL,
		cost DOUBLE PRECISION NOT NULL,
		latency_ms BIGINT NOT NULL,
		fallback_used BOOLEAN NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_tenant_created ON usage_records(tenant, created_at);`)
	return err
}

// Append implements Ledger.
func (p *Postgres) Append(ctx context.Context, r Record) error {
	return p.append(ctx, r)
}

// MonthlyUsage implements Ledger.
func (p *Postgres) MonthlyUsage(ctx context.Context, tenant string, at time.Time) (float64, error) {
	return p.monthlyUsage(ctx, tenant, at)
}

// Totals implements Ledger.
func (p *Postgres) Totals(ctx context.Context, since time.Time) (map[string]float64, error) {
	return p.totals(ctx, since)
}

// Ping implements Ledger.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool. It is idempotent.
func (p *Postgres) Close() error {
	if !p.markClosed() {
		return nil
	}
	return p.db.Close()
}
