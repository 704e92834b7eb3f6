// Package postgres implements the engine ports directly against a Postgres
// database using pgx. It is the alternative to the Supabase REST backend for
// deployments that hold a database connection string.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/aml-risk-engine/internal/config"
	"github.com/boddenberg/aml-risk-engine/internal/infra/resilience"
)

var tracer = otel.Tracer("postgres")

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store serves every engine port from one database.
type Store struct {
	db     DB
	tables config.Tables
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// Connect opens a pool and checks it answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// NewStore creates a Store over db.
func NewStore(db DB, tables config.Tables, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{db: db, tables: tables, cb: cb, cfg: cfg, logger: logger}
}

func (s *Store) call(ctx context.Context, service string, fn func() error) error {
	return resilience.Call(ctx, s.cb, s.cfg, "postgres/"+service, fn)
}

// ident quotes a configured table name.
func ident(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// EnsureSchema creates the tables the engine writes to. The ledger and the
// screening lists are owned upstream and are never created here.
func (s *Store) EnsureSchema(ctx context.Context) error {
	t := s.tables
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			transaction_id bigint NOT NULL,
			account_no text NOT NULL,
			overall_risk_score double precision NOT NULL,
			risk_level text NOT NULL,
			reason_codes text[] NOT NULL,
			payload jsonb NOT NULL,
			generated_at timestamptz NOT NULL
		)`, ident(t.TransactionReports)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			transaction_id bigint NOT NULL,
			account_no text NOT NULL,
			overall_risk_score double precision NOT NULL,
			risk_level text NOT NULL,
			reason_codes text[] NOT NULL,
			status text NOT NULL,
			next_review_date timestamptz NOT NULL,
			payload jsonb NOT NULL,
			generated_at timestamptz NOT NULL
		)`, ident(t.CustomerReports)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id text NOT NULL,
			generated_at timestamptz NOT NULL,
			account_no text NOT NULL,
			mean double precision NOT NULL,
			std double precision NOT NULL,
			count integer NOT NULL,
			payload jsonb NOT NULL
		)`, ident(t.CustomerProfiles)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id text NOT NULL,
			generated_at timestamptz NOT NULL,
			occupation text NOT NULL,
			mean double precision NOT NULL,
			std double precision NOT NULL,
			count integer NOT NULL
		)`, ident(t.OccupationProfiles)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id text NOT NULL,
			generated_at timestamptz NOT NULL,
			bucket text NOT NULL,
			mean_age double precision NOT NULL,
			mean_amount double precision NOT NULL,
			std double precision NOT NULL,
			count integer NOT NULL
		)`, ident(t.AccountAgeProfiles)),
	}

	for _, stmt := range ddl {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	s.logger.Info("postgres: schema ready")
	return nil
}
