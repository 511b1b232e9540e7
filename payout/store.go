package payout

import (
	"context"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
)

// Store is read-only access to growth_payouts.
type Store interface {
	GetPayout(ctx context.Context, payoutID id.PayoutID) (*Payout, error)
	ListPayouts(ctx context.Context, opts ListOpts) ([]*Payout, error)
	CountPayouts(ctx context.Context) (int64, error)
}

// ListOpts filters ListPayouts. Results are ordered by cycle_end descending.
type ListOpts struct {
	Stream entry.Stream
	Status Status
	Limit  int
	Offset int
}
