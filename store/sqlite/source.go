package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/store"
)

var _ store.Source = (*Source)(nil)

// Source reads revenue_events from a discovery database. The connection is
// opened query-only.
type Source struct {
	db *sql.DB
}

// NewSource wraps an open database handle.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// OpenSource opens the discovery database at path. The file must exist.
func OpenSource(ctx context.Context, path string) (*Source, error) {
	if !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: source: %w", err)
		}
	}
	db, err := open(ctx, path, "busy_timeout(5000)", "query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: source: %w", err)
	}
	return &Source{db: db}, nil
}

// DB returns the underlying database handle.
func (s *Source) DB() *sql.DB { return s.db }

const selectEvents = `
SELECT CAST(id AS TEXT), CAST(amount AS TEXT), COALESCE(currency, ''), COALESCE(source, ''),
       COALESCE(kind, ''), metadata_json, CAST(occurred_at AS TEXT)
FROM revenue_events
WHERE kind IS NULL OR kind <> 'simulated'`

func (s *Source) ListReconcilable(ctx context.Context) ([]*event.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+` ORDER BY id`)
	if err != nil {
		return nil, queryError("list events", err)
	}
	return scanEvents(rows)
}

func (s *Source) CountReconcilable(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revenue_events WHERE kind IS NULL OR kind <> 'simulated'`,
	).Scan(&n)
	if err != nil {
		return 0, queryError("count events", err)
	}
	return n, nil
}

func (s *Source) RecentReconcilable(ctx context.Context, limit int) ([]*event.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+` ORDER BY occurred_at DESC, id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, queryError("recent events", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*event.Record, error) {
	defer rows.Close()

	result := make([]*event.Record, 0)
	for rows.Next() {
		var (
			r          event.Record
			amount     sql.NullString
			meta       sql.NullString
			occurredAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &amount, &r.Currency, &r.Source, &r.Kind, &meta, &occurredAt); err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: scan event: %w", err)
		}
		r.Amount = amount.String
		if meta.Valid {
			r.Metadata = []byte(meta.String)
		}
		if t, ok := parseTime(occurredAt.String); ok {
			r.OccurredAt = t
		} else {
			r.RawOccurredAt = occurredAt.String
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: iterate events: %w", err)
	}
	return result, nil
}

// Ping checks connectivity and that revenue_events exists.
func (s *Source) Ping(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'revenue_events'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("growthledger/sqlite: ping source: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("growthledger/sqlite: revenue_events: %w", growthledger.ErrSchemaMissing)
	}
	return nil
}

// Close closes the database connection.
func (s *Source) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
