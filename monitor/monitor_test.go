package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/monitor"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/store/memory"
	"github.com/xraph/growthledger/types"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seedLedger(t *testing.T, n int) *memory.Ledger {
	t.Helper()
	l := memory.New()
	entries := make([]*entry.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, &entry.Entry{
			Entity:        types.EntityAt(t0.Add(time.Duration(i) * time.Hour)),
			ID:            id.NewEntryID(),
			TransactionID: "tx-" + string(rune('a'+i)),
			Stream:        entry.StreamPOD,
			AmountCents:   int64(100*i + 5),
			Currency:      "USD",
			Status:        entry.StatusCleared,
		})
	}
	if _, err := l.AppendEntries(context.Background(), entries); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestSnapshot(t *testing.T) {
	ledger := seedLedger(t, 7)
	ledger.AddPayout(&payout.Payout{ID: id.NewPayoutID(), Stream: entry.StreamPOD, Currency: "USD", CycleEnd: t0, Status: payout.StatusOpen})

	src := memory.NewSource(
		&event.Record{ID: "1", Kind: "simulated", Amount: "1", Currency: "USD", OccurredAt: t0},
		&event.Record{ID: "2", Kind: "real", Amount: "2", Currency: "USD", OccurredAt: t0},
	)

	r := monitor.New(src, ledger).Snapshot(context.Background())

	if r.Ledger.Status != monitor.StatusOK || r.Ledger.EntryCount != 7 {
		t.Errorf("ledger = %+v", r.Ledger)
	}
	// Σ(100i+5) for i in 0..6 = 2135 cents.
	if !r.Ledger.TotalClearedAmount.Equal(decimal.RequireFromString("21.35")) {
		t.Errorf("total cleared = %s, want 21.35", r.Ledger.TotalClearedAmount)
	}
	if r.Ledger.ClearedByCurrency["USD"].Amount != 2135 {
		t.Errorf("by currency = %v", r.Ledger.ClearedByCurrency)
	}
	if len(r.Ledger.RecentEntries) != monitor.DefaultRecent {
		t.Fatalf("recent entries = %d", len(r.Ledger.RecentEntries))
	}
	if r.Ledger.RecentEntries[0].TransactionID != "tx-g" {
		t.Errorf("newest entry = %s, want tx-g", r.Ledger.RecentEntries[0].TransactionID)
	}

	if r.Source.Status != monitor.StatusOK || r.Source.EventCount != 1 || len(r.Source.RecentEvents) != 1 {
		t.Errorf("source = %+v", r.Source)
	}
	if r.Payouts.Status != monitor.StatusOK || r.Payouts.Count != 1 {
		t.Errorf("payouts = %+v", r.Payouts)
	}
}

func TestSnapshotMissingStores(t *testing.T) {
	r := monitor.New(nil, nil).Snapshot(context.Background())
	if r.Ledger.Status != monitor.StatusNotFound || r.Source.Status != monitor.StatusNotFound || r.Payouts.Status != monitor.StatusNotFound {
		t.Errorf("statuses = %q %q %q", r.Ledger.Status, r.Source.Status, r.Payouts.Status)
	}
	if r.Ledger.RecentEntries == nil || r.Source.RecentEvents == nil {
		t.Error("recent lists should be empty, not nil")
	}
}

func TestSnapshotUnreachableStores(t *testing.T) {
	ledger := memory.New()
	_ = ledger.Close()
	src := &brokenSource{Source: memory.NewSource()}

	r := monitor.New(src, ledger).Snapshot(context.Background())
	if !strings.HasPrefix(r.Ledger.Status, "error: ") {
		t.Errorf("ledger status = %q", r.Ledger.Status)
	}
	if !strings.HasPrefix(r.Source.Status, "error: ") {
		t.Errorf("source status = %q", r.Source.Status)
	}
}

func TestSnapshotSurvivesPanic(t *testing.T) {
	src := &panickySource{Source: memory.NewSource()}
	r := monitor.New(src, memory.New()).Snapshot(context.Background())
	if !strings.Contains(r.Source.Status, "kaboom") {
		t.Errorf("source status = %q", r.Source.Status)
	}
	if r.Ledger.Status != monitor.StatusOK {
		t.Errorf("ledger status = %q", r.Ledger.Status)
	}
}

func TestSnapshotUnmigratedLedger(t *testing.T) {
	r := monitor.New(memory.NewSource(), unmigratedLedger{Ledger: memory.New()}).Snapshot(context.Background())
	if r.Ledger.Status != monitor.StatusNotFound {
		t.Errorf("ledger status = %q, want %q", r.Ledger.Status, monitor.StatusNotFound)
	}
	if r.Payouts.Status != monitor.StatusNotFound {
		t.Errorf("payouts status = %q, want %q", r.Payouts.Status, monitor.StatusNotFound)
	}
	if r.Source.Status != monitor.StatusOK {
		t.Errorf("source status = %q", r.Source.Status)
	}
}

type unmigratedLedger struct{ *memory.Ledger }

func (unmigratedLedger) CountEntries(context.Context) (int64, error) {
	return 0, fmt.Errorf("count entries: %w", growthledger.ErrSchemaMissing)
}

func (unmigratedLedger) CountPayouts(context.Context) (int64, error) {
	return 0, fmt.Errorf("count payouts: %w", growthledger.ErrSchemaMissing)
}

type brokenSource struct{ *memory.Source }

func (brokenSource) CountReconcilable(context.Context) (int64, error) {
	return 0, errors.New("connection refused")
}

type panickySource struct{ *memory.Source }

func (panickySource) CountReconcilable(context.Context) (int64, error) { panic("kaboom") }
