package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const migrationTable = "growthledger_migrations"

type migration struct {
	Version string
	Name    string
	Up      string
}

// Migrations is the ordered schema history of the ledger database.
var Migrations = []migration{
	{
		Version: "20240101000001",
		Name:    "create_growth_ledger_entries",
		Up: `
CREATE TABLE IF NOT EXISTS growth_ledger_entries (
    id              TEXT PRIMARY KEY,
    transaction_id  TEXT NOT NULL,
    stream          TEXT NOT NULL,
    amount_cents    BIGINT NOT NULL,
    currency        CHAR(3) NOT NULL,
    status          TEXT NOT NULL DEFAULT 'CLEARED',
    provenance_meta JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    CONSTRAINT growth_ledger_entries_transaction_id_key UNIQUE (transaction_id),
    CONSTRAINT growth_ledger_entries_cleared_non_negative CHECK (status <> 'CLEARED' OR amount_cents >= 0)
);

CREATE INDEX IF NOT EXISTS idx_growth_ledger_entries_created_at ON growth_ledger_entries (created_at DESC);
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
    currency    CHAR(3) NOT NULL,
    total_cents BIGINT NOT NULL DEFAULT 0,
    entry_count BIGINT NOT NULL DEFAULT 0,
    cycle_start TIMESTAMPTZ NOT NULL,
    cycle_end   TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL DEFAULT 'OPEN',
    settled_at  TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_growth_payouts_cycle_end ON growth_payouts (cycle_end DESC);
`,
	},
}

// SourceSchema creates revenue_events as the discovery layer writes it.
// It exists for fixtures and local setups.
const SourceSchema = `
CREATE TABLE IF NOT EXISTS revenue_events (
    id            BIGSERIAL PRIMARY KEY,
    amount        NUMERIC(18, 6) NOT NULL,
    currency      TEXT NOT NULL DEFAULT 'USD',
    source        TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT 'real',
    metadata_json JSONB,
    occurred_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    version    VARCHAR(255) PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM "+migrationTable+" WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("executing migration %s: %w", m.Name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO "+migrationTable+" (version, name) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
				m.Version, m.Name,
			); err != nil {
				return fmt.Errorf("recording migration %s: %w", m.Name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
