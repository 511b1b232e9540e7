package growthledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/types"
)

// Outcome is what a sync did with one event.
type Outcome string

const (
	OutcomeSynced            Outcome = "synced"
	OutcomeSkippedDuplicate  Outcome = "skipped_duplicate"
	OutcomeSkippedConcurrent Outcome = "skipped_concurrent"
	OutcomeRejected          Outcome = "rejected"
)

// Skipped reports whether the outcome counts towards SkippedCount.
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedDuplicate || o == OutcomeSkippedConcurrent
}

// LogEntry is the per-event line of a SyncReport.
type LogEntry struct {
	EventID       string       `json:"event_id"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Outcome       Outcome      `json:"outcome"`
	Stream        entry.Stream `json:"stream,omitempty"`
	AmountCents   int64        `json:"amount_cents,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// SyncReport summarises one committed sync.
type SyncReport struct {
	SyncID     string    `json:"sync_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	SyncedCount   int `json:"synced_count"`
	SkippedCount  int `json:"skipped_count"`
	RejectedCount int `json:"rejected_count"`

	// TotalValue is the sum of synced amounts in major units. It adds
	// currencies together and is for reporting only; Totals is exact.
	TotalValue decimal.Decimal        `json:"total_value"`
	Totals     map[string]types.Money `json:"totals"`

	Entries []LogEntry `json:"entries"`
}

// Duration returns how long the sync took.
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *SyncReport) tally() {
	r.SyncedCount, r.SkippedCount, r.RejectedCount = 0, 0, 0
	r.TotalValue = decimal.Zero
	r.Totals = make(map[string]types.Money)

	for _, le := range r.Entries {
		switch {
		case le.Outcome == OutcomeSynced:
			r.SyncedCount++
			m := types.Money{Amount: le.AmountCents, Currency: le.Currency}
			r.TotalValue = r.TotalValue.Add(m.Major())
			if cur, ok := r.Totals[le.Currency]; ok {
				r.Totals[le.Currency] = cur.Add(m)
			} else {
				r.Totals[le.Currency] = m
			}
		case le.Outcome.Skipped():
			r.SkippedCount++
		case le.Outcome == OutcomeRejected:
			r.RejectedCount++
		}
	}
}
