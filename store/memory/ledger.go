package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/store"
)

var _ store.Ledger = (*Ledger)(nil)

// Ledger keeps entries keyed by transaction id. AppendEntries is atomic:
// either every new entry is stored or none is.
type Ledger struct {
	mu sync.RWMutex

	entries map[string]*entry.Entry
	order   []string

	payouts map[string]*payout.Payout
	closed  bool
}

func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry.Entry),
		payouts: make(map[string]*payout.Payout),
	}
}

// Entry Store implementation
func (l *Ledger) HasEntry(_ context.Context, transactionID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false, growthledger.ErrStoreClosed
	}
	_, ok := l.entries[transactionID]
	return ok, nil
}

func (l *Ledger) GetEntry(_ context.Context, transactionID string) (*entry.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}
	if e, ok := l.entries[transactionID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, growthledger.ErrEntryNotFound
}

func (l *Ledger) AppendEntries(_ context.Context, entries []*entry.Entry) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("growthledger/memory: append: %w", err)
		}
	}

	inserted := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, exists := l.entries[e.TransactionID]; exists {
			continue
		}
		cp := *e
		l.entries[e.TransactionID] = &cp
		l.order = append(l.order, e.TransactionID)
		inserted = append(inserted, e.TransactionID)
	}
	return inserted, nil
}

func (l *Ledger) CountEntries(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, growthledger.ErrStoreClosed
	}
	return int64(len(l.entries)), nil
}

func (l *Ledger) RecentEntries(_ context.Context, limit int) ([]*entry.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}

	result := make([]*entry.Entry, 0, len(l.order))
	for _, txID := range l.order {
		cp := *l.entries[txID]
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (l *Ledger) ClearedTotals(_ context.Context) (map[string]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}

	totals := make(map[string]int64)
	for _, e := range l.entries {
		if e.Status == entry.StatusCleared {
			totals[e.Currency] += e.AmountCents
		}
	}
	return totals, nil
}

// Payout Store implementation

// AddPayout seeds a payout. Payouts are written by the settlement process,
// so this is the only way they enter the in-memory ledger.
func (l *Ledger) AddPayout(p *payout.Payout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *p
	l.payouts[p.ID.String()] = &cp
}

func (l *Ledger) GetPayout(_ context.Context, payoutID id.PayoutID) (*payout.Payout, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}
	if p, ok := l.payouts[payoutID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, growthledger.ErrPayoutNotFound
}

func (l *Ledger) ListPayouts(_ context.Context, opts payout.ListOpts) ([]*payout.Payout, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, growthledger.ErrStoreClosed
	}

	result := make([]*payout.Payout, 0)
	for _, p := range l.payouts {
		if opts.Stream != "" && p.Stream != opts.Stream {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CycleEnd.Equal(result[j].CycleEnd) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CycleEnd.After(result[j].CycleEnd)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (l *Ledger) CountPayouts(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, growthledger.ErrStoreClosed
	}
	return int64(len(l.payouts)), nil
}

// Core methods
func (l *Ledger) Migrate(_ context.Context) error {
	return nil
}

func (l *Ledger) Ping(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return growthledger.ErrStoreClosed
	}
	return nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
