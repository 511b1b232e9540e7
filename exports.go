package growthledger

import (
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/types"
)

// Re-export common types for convenience so users don't have to import the
// domain packages for simple wiring.

// Money is re-exported from types package.
type Money = types.Money

// Entry is re-exported from entry package.
type Entry = entry.Entry

// RevenueEvent is re-exported from event package.
type RevenueEvent = event.RevenueEvent

// Re-export Money constructors
var (
	USD       = types.USD
	EUR       = types.EUR
	JPY       = types.JPY
	Zero      = types.Zero
	Sum       = types.Sum
	FromMajor = types.FromMajor
)
