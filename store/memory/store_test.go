package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/store/memory"
	"github.com/xraph/growthledger/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newEntry(txID string, cents int64, at time.Time) *entry.Entry {
	return &entry.Entry{
		Entity:        types.EntityAt(at),
		ID:            id.NewEntryID(),
		TransactionID: txID,
		Stream:        entry.StreamPOD,
		AmountCents:   cents,
		Currency:      "USD",
		Status:        entry.StatusCleared,
	}
}

func TestSourceFiltersSimulated(t *testing.T) {
	ctx := context.Background()
	src := memory.NewSource(
		&event.Record{ID: "1", Kind: "simulated", Amount: "10", Currency: "USD", OccurredAt: t0},
		&event.Record{ID: "2", Kind: "real", Amount: "25.50", Currency: "USD", OccurredAt: t0.Add(time.Hour)},
		&event.Record{ID: "3", Kind: "affiliate_amazon", Amount: "3", Currency: "USD", OccurredAt: t0.Add(2 * time.Hour)},
	)

	list, err := src.ListReconcilable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "2" || list[1].ID != "3" {
		t.Fatalf("ListReconcilable = %+v", list)
	}

	n, _ := src.CountReconcilable(ctx)
	if n != 2 {
		t.Errorf("CountReconcilable = %d", n)
	}

	recent, _ := src.RecentReconcilable(ctx, 1)
	if len(recent) != 1 || recent[0].ID != "3" {
		t.Errorf("RecentReconcilable = %+v", recent)
	}
}

func TestAppendEntriesDeduplicates(t *testing.T) {
	ctx := context.Background()
	l := memory.New()

	inserted, err := l.AppendEntries(ctx, []*entry.Entry{newEntry("A", 100, t0), newEntry("B", 200, t0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 2 {
		t.Fatalf("inserted = %v", inserted)
	}

	inserted, err = l.AppendEntries(ctx, []*entry.Entry{newEntry("B", 999, t0), newEntry("C", 300, t0)})
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 1 || inserted[0] != "C" {
		t.Errorf("inserted = %v, want [C]", inserted)
	}

	b, err := l.GetEntry(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if b.AmountCents != 200 {
		t.Errorf("existing entry was overwritten: %d", b.AmountCents)
	}

	n, _ := l.CountEntries(ctx)
	if n != 3 {
		t.Errorf("CountEntries = %d, want 3", n)
	}
}

func TestAppendEntriesAtomicOnInvalid(t *testing.T) {
	ctx := context.Background()
	l := memory.New()

	bad := newEntry("", 100, t0)
	if _, err := l.AppendEntries(ctx, []*entry.Entry{newEntry("A", 1, t0), bad}); err == nil {
		t.Fatal("expected validation error")
	}
	if ok, _ := l.HasEntry(ctx, "A"); ok {
		t.Error("partial batch was committed")
	}
}

func TestRecentEntriesAndTotals(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	eur := newEntry("E", 500, t0.Add(3*time.Hour))
	eur.Currency = "EUR"
	pending := newEntry("P", 7, t0.Add(4*time.Hour))
	pending.Status = entry.StatusPending

	_, err := l.AppendEntries(ctx, []*entry.Entry{
		newEntry("A", 100, t0),
		newEntry("B", 250, t0.Add(time.Hour)),
		eur,
		pending,
	})
	if err != nil {
		t.Fatal(err)
	}

	recent, _ := l.RecentEntries(ctx, 2)
	if len(recent) != 2 || recent[0].TransactionID != "P" || recent[1].TransactionID != "E" {
		t.Errorf("RecentEntries = %v, %v", recent[0].TransactionID, recent[1].TransactionID)
	}

	totals, _ := l.ClearedTotals(ctx)
	if totals["USD"] != 350 || totals["EUR"] != 500 {
		t.Errorf("ClearedTotals = %v", totals)
	}
}

func TestPayouts(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	older := &payout.Payout{ID: id.NewPayoutID(), Stream: entry.StreamPOD, Currency: "USD", CycleEnd: t0, Status: payout.StatusSettled}
	newer := &payout.Payout{ID: id.NewPayoutID(), Stream: entry.StreamContent, Currency: "USD", CycleEnd: t0.Add(24 * time.Hour), Status: payout.StatusOpen}
	l.AddPayout(older)
	l.AddPayout(newer)

	list, _ := l.ListPayouts(ctx, payout.ListOpts{})
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Errorf("ListPayouts order wrong")
	}
	list, _ = l.ListPayouts(ctx, payout.ListOpts{Status: payout.StatusSettled})
	if len(list) != 1 || list[0].ID != older.ID {
		t.Errorf("status filter wrong")
	}
	if _, err := l.GetPayout(ctx, id.NewPayoutID()); !errors.Is(err, growthledger.ErrPayoutNotFound) {
		t.Errorf("GetPayout missing = %v", err)
	}
}

func TestClosed(t *testing.T) {
	l := memory.New()
	_ = l.Close()
	if err := l.Ping(context.Background()); !errors.Is(err, growthledger.ErrStoreClosed) {
		t.Errorf("Ping after close = %v", err)
	}
}
