// Package memory provides in-memory source and ledger stores for tests and
// local runs. Both are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/store"
)

var _ store.Source = (*Source)(nil)

// Source holds revenue_events rows in insertion order.
type Source struct {
	mu     sync.RWMutex
	events []*event.Record
	closed bool
}

func NewSource(records ...*event.Record) *Source {
	s := &Source{}
	s.Add(records...)
	return s
}

// Add appends raw rows.
func (s *Source) Add(records ...*event.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		cp := *r
		s.events = append(s.events, &cp)
	}
}

// AddEvents appends typed events in their stored form.
func (s *Source) AddEvents(evs ...*event.RevenueEvent) {
	for _, ev := range evs {
		s.Add(event.NewRecord(ev))
	}
}

func (s *Source) ListReconcilable(_ context.Context) ([]*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, growthledger.ErrStoreClosed
	}
	return s.reconcilable(), nil
}

func (s *Source) CountReconcilable(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, growthledger.ErrStoreClosed
	}
	return int64(len(s.reconcilable())), nil
}

func (s *Source) RecentReconcilable(_ context.Context, limit int) ([]*event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, growthledger.ErrStoreClosed
	}

	result := s.reconcilable()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Source) reconcilable() []*event.Record {
	result := make([]*event.Record, 0, len(s.events))
	for _, r := range s.events {
		if event.Kind(r.Kind).Simulated() {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return result
}

func (s *Source) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return growthledger.ErrStoreClosed
	}
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
