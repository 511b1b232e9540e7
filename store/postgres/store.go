// Package postgres implements the growth ledger stores on PostgreSQL via
// pgx. A Store opened with OpenSource serves the read-only discovery role;
// one opened with OpenLedger serves the ledger role.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/store"
)

// compile-time interface checks
var (
	_ store.Source = (*Store)(nil)
	_ store.Ledger = (*Store)(nil)
)

// Store implements store.Source and store.Ledger on a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	retry    store.RetryPolicy
	logger   *slog.Logger
	readOnly bool
}

// Option configures a Store.
type Option func(*Store)

// WithRetryPolicy overrides the per-operation timeout and retry policy. The
// policy's Transient predicate is always IsTransient.
func WithRetryPolicy(p store.RetryPolicy) Option {
	return func(s *Store) {
		p.Transient = IsTransient
		s.retry = p
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		retry:  store.DefaultRetryPolicy(IsTransient),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSource connects to the discovery database with read-only transactions.
func OpenSource(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("growthledger/postgres: parse source url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("growthledger/postgres: connecting to source: %w", err)
	}
	s := New(pool, opts...)
	s.readOnly = true
	return s, nil
}

// OpenLedger connects to the ledger database. Call Migrate before first use.
func OpenLedger(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("growthledger/postgres: connecting to ledger: %w", err)
	}
	return New(pool, opts...), nil
}

// Pool returns the underlying pgx pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the ledger tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("growthledger/postgres: %w: source store is read-only", growthledger.ErrMigrationFailed)
	}
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("growthledger/postgres: %w: %w", growthledger.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks connectivity. A source store also checks revenue_events exists.
func (s *Store) Ping(ctx context.Context) error {
	return store.Exec(ctx, s.retry, func(ctx context.Context) error {
		if err := s.pool.Ping(ctx); err != nil {
			return fmt.Errorf("growthledger/postgres: ping: %w", err)
		}
		if !s.readOnly {
			return nil
		}
		var found bool
		if err := s.pool.QueryRow(ctx, `SELECT to_regclass('revenue_events') IS NOT NULL`).Scan(&found); err != nil {
			return fmt.Errorf("growthledger/postgres: ping source: %w", err)
		}
		if !found {
			return errors.New("growthledger/postgres: revenue_events table not found")
		}
		return nil
	})
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// query runs fn under the retry policy.
func query[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := store.Do(ctx, s.retry, fn)
	if err != nil {
		if IsUndefinedTable(err) {
			return v, fmt.Errorf("growthledger/postgres: %s: %w: %w", op, growthledger.ErrSchemaMissing, err)
		}
		return v, fmt.Errorf("growthledger/postgres: %s: %w", op, err)
	}
	return v, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
