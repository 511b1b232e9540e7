// Package entry defines the canonical growth ledger entry: the append-only
// system of record for recognised revenue.
package entry

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/types"
)

// Stream is a coarse revenue category used for reporting and payout grouping.
// The set is open: operators may add streams through classifier rules.
type Stream string

const (
	StreamPOD       Stream = "POD"
	StreamContent   Stream = "CONTENT"
	StreamAffiliate Stream = "AFFILIATE"
)

// ParseStream validates a stream name. Streams are upper-case ASCII letters,
// digits and underscores.
func ParseStream(s string) (Stream, error) {
	if s == "" {
		return "", errors.New("entry: empty stream")
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("entry: invalid stream %q", s)
		}
	}
	return Stream(s), nil
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusCleared  Status = "CLEARED"
	StatusReversed Status = "REVERSED"
)

// Provenance records where an entry's underlying event came from. It is
// stored as JSON next to the entry and is enough to re-classify it later.
type Provenance struct {
	OriginName     string         `json:"origin_name"`
	OriginType     string         `json:"origin_type"`
	DiscoveryID    string         `json:"discovery_id"`
	SyncTime       time.Time      `json:"sync_time"`
	QualityScore   float64        `json:"quality_score"`
	SyncID         string         `json:"sync_id,omitempty"`
	ClassifiedBy   string         `json:"classified_by,omitempty"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

type Entry struct {
	types.Entity
	ID            id.EntryID `json:"id"`
	TransactionID string     `json:"transaction_id"`
	Stream        Stream     `json:"stream"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Status        Status     `json:"status"`
	Provenance    Provenance `json:"provenance_meta"`
}

// Money returns the entry amount as Money.
func (e *Entry) Money() types.Money {
	return types.Money{Amount: e.AmountCents, Currency: e.Currency}
}

// Validate checks the invariants every stored entry must hold.
func (e *Entry) Validate() error {
	if e.TransactionID == "" {
		return errors.New("entry: empty transaction id")
	}
	if e.Stream == "" {
		return fmt.Errorf("entry %s: empty stream", e.TransactionID)
	}
	if !types.ValidCurrency(e.Currency) {
		return fmt.Errorf("entry %s: invalid currency %q", e.TransactionID, e.Currency)
	}
	if e.Status == StatusCleared && e.AmountCents < 0 {
		return fmt.Errorf("entry %s: negative cleared amount %d", e.TransactionID, e.AmountCents)
	}
	return nil
}
