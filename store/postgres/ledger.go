package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
)

// ==================== Entry Store ====================

const entryColumns = `id, transaction_id, stream, amount_cents, currency, status, provenance_meta, created_at, updated_at`

const insertEntry = `
INSERT INTO growth_ledger_entries (` + entryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (transaction_id) DO NOTHING`

func (s *Store) HasEntry(ctx context.Context, transactionID string) (bool, error) {
	return query(ctx, s, "has entry", func(ctx context.Context) (bool, error) {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM growth_ledger_entries WHERE transaction_id = $1)`, transactionID,
		).Scan(&exists)
		return exists, err
	})
}

func (s *Store) GetEntry(ctx context.Context, transactionID string) (*entry.Entry, error) {
	e, err := query(ctx, s, "get entry", func(ctx context.Context) (*entry.Entry, error) {
		row := s.pool.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM growth_ledger_entries WHERE transaction_id = $1`, transactionID)
		return scanEntry(row)
	})
	if isNoRows(err) {
		return nil, growthledger.ErrEntryNotFound
	}
	return e, err
}

// AppendEntries inserts every entry in one transaction using a pipelined
// batch. A transient failure retries the whole transaction; rows another
// writer (or a lost commit acknowledgement) already stored are omitted from
// the result.
func (s *Store) AppendEntries(ctx context.Context, entries []*entry.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	args := make([][]any, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("growthledger/postgres: append: %w", err)
		}
		prov, err := json.Marshal(e.Provenance)
		if err != nil {
			return nil, fmt.Errorf("growthledger/postgres: encode provenance %s: %w", e.TransactionID, err)
		}
		args[i] = []any{
			e.ID.String(), e.TransactionID, string(e.Stream), e.AmountCents, e.Currency,
			string(e.Status), prov, e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
		}
	}

	return query(ctx, s, "append entries", func(ctx context.Context) ([]string, error) {
		var inserted []string
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			inserted = make([]string, 0, len(entries))

			batch := &pgx.Batch{}
			for _, a := range args {
				batch.Queue(insertEntry, a...)
			}
			br := tx.SendBatch(ctx, batch)
			for _, e := range entries {
				ct, err := br.Exec()
				if err != nil {
					_ = br.Close()
					return fmt.Errorf("insert entry %s: %w", e.TransactionID, err)
				}
				if ct.RowsAffected() == 1 {
					inserted = append(inserted, e.TransactionID)
				}
			}
			return br.Close()
		})
		return inserted, err
	})
}

func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	return query(ctx, s, "count entries", func(ctx context.Context) (int64, error) {
		var n int64
		err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM growth_ledger_entries`).Scan(&n)
		return n, err
	})
}

func (s *Store) RecentEntries(ctx context.Context, limit int) ([]*entry.Entry, error) {
	return query(ctx, s, "recent entries", func(ctx context.Context) ([]*entry.Entry, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT `+entryColumns+` FROM growth_ledger_entries ORDER BY created_at DESC, id DESC LIMIT $1`,
			pgLimit(limit))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		result := make([]*entry.Entry, 0)
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return nil, err
			}
			result = append(result, e)
		}
		return result, rows.Err()
	})
}

func (s *Store) ClearedTotals(ctx context.Context) (map[string]int64, error) {
	return query(ctx, s, "cleared totals", func(ctx context.Context) (map[string]int64, error) {
		rows, err := s.pool.Query(ctx, `
SELECT currency, COALESCE(SUM(amount_cents), 0)::bigint
FROM growth_ledger_entries
WHERE status = $1
GROUP BY currency`, string(entry.StatusCleared))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		totals := make(map[string]int64)
		for rows.Next() {
			var (
				currency string
				cents    int64
			)
			if err := rows.Scan(&currency, &cents); err != nil {
				return nil, err
			}
			totals[currency] = cents
		}
		return totals, rows.Err()
	})
}

// ==================== Payout Store ====================

const payoutColumns = `id, stream, currency, total_cents, entry_count, cycle_start, cycle_end, status, settled_at, created_at, updated_at`

func (s *Store) GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	p, err := query(ctx, s, "get payout", func(ctx context.Context) (*payout.Payout, error) {
		row := s.pool.QueryRow(ctx,
			`SELECT `+payoutColumns+` FROM growth_payouts WHERE id = $1`, payoutID.String())
		return scanPayout(row)
	})
	if isNoRows(err) {
		return nil, growthledger.ErrPayoutNotFound
	}
	return p, err
}

func (s *Store) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Payout, error) {
	q, args := listPayoutsQuery(opts)
	return query(ctx, s, "list payouts", func(ctx context.Context) ([]*payout.Payout, error) {
		rows, err := s.pool.Query(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		result := make([]*payout.Payout, 0)
		for rows.Next() {
			p, err := scanPayout(rows)
			if err != nil {
				return nil, err
			}
			result = append(result, p)
		}
		return result, rows.Err()
	})
}

func listPayoutsQuery(opts payout.ListOpts) (string, []any) {
	var (
		where []string
		args  []any
	)
	argIdx := 1
	if opts.Stream != "" {
		where = append(where, fmt.Sprintf("stream = $%d", argIdx))
		args = append(args, string(opts.Stream))
		argIdx++
	}
	if opts.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(opts.Status))
		argIdx++
	}

	q := `SELECT ` + payoutColumns + ` FROM growth_payouts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY cycle_end DESC, id DESC"
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, opts.Limit, opts.Offset)
	}
	return q, args
}

func (s *Store) CountPayouts(ctx context.Context) (int64, error) {
	return query(ctx, s, "count payouts", func(ctx context.Context) (int64, error) {
		var n int64
		err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM growth_payouts`).Scan(&n)
		return n, err
	})
}
