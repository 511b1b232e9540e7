package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const migrationTable = "growthledger_migrations"

type migration struct {
	Version string
	Name    string
	Up      string
}

// Migrations is the ordered schema history of the ledger database. The
// discovery database is never migrated; see SourceSchema.
var Migrations = []migration{
	{
		Version: "20240101000001",
		Name:    "create_growth_ledger_entries",
		Up: `
CREATE TABLE IF NOT EXISTS growth_ledger_entries (
    id              TEXT PRIMARY KEY,
    transaction_id  TEXT NOT NULL,
    stream          TEXT NOT NULL,
    amount_cents    INTEGER NOT NULL,
    currency        TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'CLEARED',
    provenance_meta TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    CHECK (status <> 'CLEARED' OR amount_cents >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_growth_ledger_entries_transaction_id ON growth_ledger_entries (transaction_id);
CREATE INDEX IF NOT EXISTS idx_growth_ledger_entries_created_at ON growth_ledger_entries (created_at);
CREATE INDEX IF NOT EXISTS idx_growth_ledger_entries_stream_status ON growth_ledger_entries (stream, status);
`,
	},
	{
		Version: "20240101000002",
		Name:    "create_growth_payouts",
		Up: `
CREATE TABLE IF NOT EXISTS growth_payouts (
    id          TEXT PRIMARY KEY,
    stream      TEXT NOT NULL,
    currency    TEXT NOT NULL,
    total_cents INTEGER NOT NULL DEFAULT 0,
    entry_count INTEGER NOT NULL DEFAULT 0,
    cycle_start TEXT NOT NULL,
    cycle_end   TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'OPEN',
    settled_at  TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_growth_payouts_cycle_end ON growth_payouts (cycle_end);
`,
	},
}

// SourceSchema creates the revenue_events table as the discovery layer
// writes it. It exists for fixtures and local setups; the growth ledger
// never runs it against a real discovery database.
const SourceSchema = `
CREATE TABLE IF NOT EXISTS revenue_events (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    amount        NUMERIC NOT NULL,
    currency      TEXT NOT NULL DEFAULT 'USD',
    source        TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT 'real',
    metadata_json TEXT,
    occurred_at   TEXT NOT NULL
);
`

// migrate applies pending migrations, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, m := range Migrations {
		done, err := isApplied(ctx, db, m.Version)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if done {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+migrationTable+" (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func isApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE version = ?", version).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
