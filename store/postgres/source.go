package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/growthledger/event"
)

const selectEvents = `
SELECT id::text, amount::text, COALESCE(currency, ''), COALESCE(source, ''),
       COALESCE(kind, ''), metadata_json::text, occurred_at
FROM revenue_events
WHERE kind IS DISTINCT FROM 'simulated'`

func (s *Store) ListReconcilable(ctx context.Context) ([]*event.Record, error) {
	return query(ctx, s, "list events", func(ctx context.Context) ([]*event.Record, error) {
		rows, err := s.pool.Query(ctx, selectEvents+` ORDER BY id`)
		if err != nil {
			return nil, err
		}
		return scanEvents(rows)
	})
}

func (s *Store) CountReconcilable(ctx context.Context) (int64, error) {
	return query(ctx, s, "count events", func(ctx context.Context) (int64, error) {
		var n int64
		err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM revenue_events WHERE kind IS DISTINCT FROM 'simulated'`,
		).Scan(&n)
		return n, err
	})
}

func (s *Store) RecentReconcilable(ctx context.Context, limit int) ([]*event.Record, error) {
	return query(ctx, s, "recent events", func(ctx context.Context) ([]*event.Record, error) {
		rows, err := s.pool.Query(ctx,
			selectEvents+` ORDER BY occurred_at DESC NULLS LAST, id DESC LIMIT $1`, pgLimit(limit))
		if err != nil {
			return nil, err
		}
		return scanEvents(rows)
	})
}

func scanEvents(rows pgx.Rows) ([]*event.Record, error) {
	defer rows.Close()

	result := make([]*event.Record, 0)
	for rows.Next() {
		var (
			r          event.Record
			amount     *string
			meta       *string
			occurredAt *time.Time
		)
		if err := rows.Scan(&r.ID, &amount, &r.Currency, &r.Source, &r.Kind, &meta, &occurredAt); err != nil {
			return nil, err
		}
		if amount != nil {
			r.Amount = *amount
		}
		if meta != nil {
			r.Metadata = []byte(*meta)
		}
		if occurredAt != nil {
			r.OccurredAt = occurredAt.UTC()
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// pgLimit maps a non-positive limit to no limit.
func pgLimit(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
