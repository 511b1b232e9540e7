// Package monitor produces read-only audit snapshots across the discovery
// source and the growth ledger. A snapshot never writes and never fails:
// a missing or unreachable store is reported in the snapshot itself.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/store"
	"github.com/xraph/growthledger/types"
)

// Section statuses.
const (
	StatusOK       = "ok"
	StatusNotFound = "not found"
)

// DefaultRecent is how many recent rows each section lists.
const DefaultRecent = 5

type AuditReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Ledger      LedgerSection  `json:"ledger"`
	Source      SourceSection  `json:"source"`
	Payouts     PayoutsSection `json:"payouts"`
}

type LedgerSection struct {
	Status     string `json:"status"`
	EntryCount int64  `json:"entry_count"`
	// TotalClearedAmount is Σ amount_cents / 100 over CLEARED entries.
	TotalClearedAmount decimal.Decimal        `json:"total_cleared_amount"`
	ClearedByCurrency  map[string]types.Money `json:"cleared_by_currency,omitempty"`
	RecentEntries      []*entry.Entry         `json:"recent_entries"`
}

type SourceSection struct {
	Status       string         `json:"status"`
	EventCount   int64          `json:"event_count"`
	RecentEvents []EventSummary `json:"recent_events"`
}

// EventSummary is a source row as stored, without decoding its amount.
type EventSummary struct {
	ID         string    `json:"id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PayoutsSection struct {
	Status string           `json:"status"`
	Count  int64            `json:"count"`
	Recent []*payout.Payout `json:"recent"`
}

// Monitor reads from whichever stores it was given. Either may be nil.
type Monitor struct {
	source  store.Source
	ledger  store.Ledger
	logger  *slog.Logger
	recent  int
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithRecent sets how many recent rows each section lists.
func WithRecent(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.recent = n
		}
	}
}

// WithTimeout bounds each section's store calls.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

func New(source store.Source, ledger store.Ledger, opts ...Option) *Monitor {
	m := &Monitor{
		source:  source,
		ledger:  ledger,
		logger:  slog.Default(),
		recent:  DefaultRecent,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot builds an AuditReport. It never returns an error.
func (m *Monitor) Snapshot(ctx context.Context) *AuditReport {
	r := &AuditReport{GeneratedAt: m.now().UTC()}

	r.Ledger = m.ledgerSection(ctx)
	r.Source = m.sourceSection(ctx)
	r.Payouts = m.payoutsSection(ctx)

	m.logger.Debug("audit snapshot",
		"ledger", r.Ledger.Status,
		"source", r.Source.Status,
		"payouts", r.Payouts.Status,
	)
	return r
}

func (m *Monitor) ledgerSection(ctx context.Context) (s LedgerSection) {
	s.RecentEntries = []*entry.Entry{}
	if m.ledger == nil {
		s.Status = StatusNotFound
		return s
	}
	defer guard(&s.Status)

	ctx, cancel := m.bound(ctx)
	defer cancel()

	count, err := m.ledger.CountEntries(ctx)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}
	totals, err := m.ledger.ClearedTotals(ctx)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}
	recent, err := m.ledger.RecentEntries(ctx, m.recent)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}

	var cents int64
	s.ClearedByCurrency = make(map[string]types.Money, len(totals))
	for _, cur := range sortedKeys(totals) {
		cents += totals[cur]
		s.ClearedByCurrency[cur] = types.Money{Amount: totals[cur], Currency: cur}
	}

	s.Status = StatusOK
	s.EntryCount = count
	s.TotalClearedAmount = decimal.New(cents, -2)
	s.RecentEntries = recent
	return s
}

func (m *Monitor) sourceSection(ctx context.Context) (s SourceSection) {
	s.RecentEvents = []EventSummary{}
	if m.source == nil {
		s.Status = StatusNotFound
		return s
	}
	defer guard(&s.Status)

	ctx, cancel := m.bound(ctx)
	defer cancel()

	count, err := m.source.CountReconcilable(ctx)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}
	recent, err := m.source.RecentReconcilable(ctx, m.recent)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}

	s.Status = StatusOK
	s.EventCount = count
	for _, rec := range recent {
		s.RecentEvents = append(s.RecentEvents, EventSummary{
			ID:         rec.ID,
			Amount:     rec.Amount,
			Currency:   rec.Currency,
			Source:     rec.Source,
			Kind:       rec.Kind,
			OccurredAt: rec.OccurredAt,
		})
	}
	return s
}

func (m *Monitor) payoutsSection(ctx context.Context) (s PayoutsSection) {
	s.Recent = []*payout.Payout{}
	if m.ledger == nil {
		s.Status = StatusNotFound
		return s
	}
	defer guard(&s.Status)

	ctx, cancel := m.bound(ctx)
	defer cancel()

	count, err := m.ledger.CountPayouts(ctx)
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}
	recent, err := m.ledger.ListPayouts(ctx, payout.ListOpts{Limit: m.recent})
	if err != nil {
		s.Status = errorStatus(err)
		return s
	}

	s.Status = StatusOK
	s.Count = count
	s.Recent = recent
	return s
}

func (m *Monitor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// errorStatus renders a failed section. A store whose tables were never
// created counts as not found.
func errorStatus(err error) string {
	if errors.Is(err, growthledger.ErrSchemaMissing) {
		return StatusNotFound
	}
	return "error: " + err.Error()
}

// guard turns a panicking store into an error status.
func guard(status *string) {
	if r := recover(); r != nil {
		*status = fmt.Sprintf("error: %v", r)
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
