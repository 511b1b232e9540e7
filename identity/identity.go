// Package identity derives the idempotency key of a revenue event.
package identity

import (
	"strings"

	"github.com/xraph/growthledger/event"
)

// SyntheticPrefix marks transaction ids derived from a discovery-local id.
// Such ids are only unique within a single discovery store.
const SyntheticPrefix = "discovery_"

// TransactionID returns the ledger transaction id for ev. A non-empty
// metadata order_id is used verbatim; otherwise the id is synthesised from the
// event's local id.
func TransactionID(ev *event.RevenueEvent) string {
	if strings.TrimSpace(ev.Metadata.OrderID) != "" {
		return ev.Metadata.OrderID
	}
	return SyntheticPrefix + ev.ID
}

// IsSynthetic reports whether txID was produced by the local-id fallback.
func IsSynthetic(txID string) bool {
	return strings.HasPrefix(txID, SyntheticPrefix)
}
