// Package payout models payout cycles that group cleared ledger entries.
// Payouts are produced by a separate settlement process; the growth ledger
// only reads them.
package payout

import (
	"time"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/types"
)

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusSettled Status = "SETTLED"
)

type Payout struct {
	types.Entity
	ID         id.PayoutID  `json:"id"`
	Stream     entry.Stream `json:"stream"`
	Currency   string       `json:"currency"`
	TotalCents int64        `json:"total_cents"`
	EntryCount int64        `json:"entry_count"`
	CycleStart time.Time    `json:"cycle_start"`
	CycleEnd   time.Time    `json:"cycle_end"`
	Status     Status       `json:"status"`
	SettledAt  *time.Time   `json:"settled_at,omitempty"`
}

// Total returns the payout total as Money.
func (p *Payout) Total() types.Money {
	return types.Money{Amount: p.TotalCents, Currency: p.Currency}
}
