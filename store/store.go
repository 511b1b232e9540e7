// Package store declares the two store handles the growth ledger works with:
// the read-only discovery source and the append-only ledger target.
// Backends live in the subpackages.
package store

import (
	"context"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/payout"
)

// Source is read-only access to the discovery layer's revenue_events.
type Source interface {
	event.Store

	Ping(ctx context.Context) error
	Close() error
}

// Ledger is read-write access to growth_ledger_entries and read-only access
// to growth_payouts.
type Ledger interface {
	entry.Store
	payout.Store

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
