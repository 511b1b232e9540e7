package growthledger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/store/memory"
	"github.com/xraph/growthledger/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory stores for the demo; use sqlite or postgres in production.
		source := memory.NewSource()
		ledger := memory.New()

		source.AddEvents(&event.RevenueEvent{
			ID:         "2",
			Amount:     decimal.RequireFromString("25.50"),
			Currency:   "USD",
			Source:     "shopier",
			Kind:       event.KindReal,
			Metadata:   event.Metadata{OrderID: "SKU-5"},
			OccurredAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		})

		engine := growthledger.New(source, ledger,
			growthledger.WithLogger(slog.Default()),
			growthledger.WithFailurePolicy(growthledger.AbortBatch),
		)

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		report, err := engine.Sync(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if report.SyncedCount != 1 {
			t.Errorf("synced = %d, want 1", report.SyncedCount)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		m, err := types.FromMajor(decimal.RequireFromString("19.995"), "usd")
		if err != nil {
			t.Fatal(err)
		}
		if m.Amount != 2000 {
			t.Errorf("amount = %d, want 2000", m.Amount)
		}
		if m.String() != "$20.00" {
			t.Errorf("String() = %q", m.String())
		}
		if m.FormatMajor() != "20.00" {
			t.Errorf("FormatMajor() = %q", m.FormatMajor())
		}
	})
}
