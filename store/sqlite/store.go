package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/store"
)

// compile-time interface check
var _ store.Ledger = (*Ledger)(nil)

// Ledger implements store.Ledger on SQLite.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an open database handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// OpenLedger opens (creating if needed) the ledger database at path.
// Call Migrate before first use.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	db, err := open(ctx, path, "busy_timeout(5000)", "journal_mode(WAL)", "foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: ledger: %w", err)
	}
	// One writer keeps the append transaction free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &Ledger{db: db}, nil
}

// DB returns the underlying database handle.
func (l *Ledger) DB() *sql.DB { return l.db }

// Migrate creates the required tables and indexes.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := migrate(ctx, l.db); err != nil {
		return fmt.Errorf("growthledger/sqlite: %w: %w", growthledger.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// ==================== Entry Store ====================

const entryColumns = `id, transaction_id, stream, amount_cents, currency, status, provenance_meta, created_at, updated_at`

func (l *Ledger) HasEntry(ctx context.Context, transactionID string) (bool, error) {
	var found int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM growth_ledger_entries WHERE transaction_id = ?`, transactionID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, queryError("has entry", err)
	}
	return true, nil
}

func (l *Ledger) GetEntry(ctx context.Context, transactionID string) (*entry.Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM growth_ledger_entries WHERE transaction_id = ?`, transactionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, growthledger.ErrEntryNotFound
	}
	if err != nil {
		return nil, queryError("get entry", err)
	}
	return e, nil
}

// AppendEntries inserts every entry in one transaction. Rows whose
// transaction id already exists are left untouched and omitted from the
// result.
func (l *Ledger) AppendEntries(ctx context.Context, entries []*entry.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: append: %w", err)
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO growth_ledger_entries (`+entryColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (transaction_id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: prepare append: %w", err)
	}
	defer stmt.Close()

	inserted := make([]string, 0, len(entries))
	for _, e := range entries {
		prov, err := json.Marshal(e.Provenance)
		if err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: encode provenance %s: %w", e.TransactionID, err)
		}
		res, err := stmt.ExecContext(ctx,
			e.ID.String(), e.TransactionID, string(e.Stream), e.AmountCents, e.Currency,
			string(e.Status), string(prov), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: insert entry %s: %w", e.TransactionID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			inserted = append(inserted, e.TransactionID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("growthledger/sqlite: commit append: %w", err)
	}
	return inserted, nil
}

func (l *Ledger) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM growth_ledger_entries`).Scan(&n); err != nil {
		return 0, queryError("count entries", err)
	}
	return n, nil
}

func (l *Ledger) RecentEntries(ctx context.Context, limit int) ([]*entry.Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM growth_ledger_entries ORDER BY created_at DESC, id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, queryError("recent entries", err)
	}
	defer rows.Close()

	result := make([]*entry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: scan entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (l *Ledger) ClearedTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT currency, COALESCE(SUM(amount_cents), 0)
FROM growth_ledger_entries
WHERE status = ?
GROUP BY currency`, string(entry.StatusCleared))
	if err != nil {
		return nil, queryError("cleared totals", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var (
			currency string
			cents    int64
		)
		if err := rows.Scan(&currency, &cents); err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: scan totals: %w", err)
		}
		totals[currency] = cents
	}
	return totals, rows.Err()
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// ==================== Payout Store ====================

const payoutColumns = `id, stream, currency, total_cents, entry_count, cycle_start, cycle_end, status, settled_at, created_at, updated_at`

func (l *Ledger) GetPayout(ctx context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM growth_payouts WHERE id = ?`, payoutID.String())
	p, err := scanPayout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, growthledger.ErrPayoutNotFound
	}
	if err != nil {
		return nil, queryError("get payout", err)
	}
	return p, nil
}

func (l *Ledger) ListPayouts(ctx context.Context, opts payout.ListOpts) ([]*payout.Payout, error) {
	var (
		where []string
		args  []any
	)
	if opts.Stream != "" {
		where = append(where, "stream = ?")
		args = append(args, string(opts.Stream))
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := `SELECT ` + payoutColumns + ` FROM growth_payouts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY cycle_end DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("list payouts", err)
	}
	defer rows.Close()

	result := make([]*payout.Payout, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("growthledger/sqlite: scan payout: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (l *Ledger) CountPayouts(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM growth_payouts`).Scan(&n); err != nil {
		return 0, queryError("count payouts", err)
	}
	return n, nil
}

// queryError wraps a failed query. A missing table means the ledger was
// never migrated; such errors match growthledger.ErrSchemaMissing.
func queryError(op string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("growthledger/sqlite: %s: %w: %w", op, growthledger.ErrSchemaMissing, err)
	}
	return fmt.Errorf("growthledger/sqlite: %s: %w", op, err)
}
