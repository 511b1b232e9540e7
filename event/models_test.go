package event_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger/event"
)

var occurred = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecode(t *testing.T) {
	r := &event.Record{
		ID:         "2",
		Amount:     "25.50",
		Currency:   "usd",
		Source:     "shopier",
		Kind:       "real",
		Metadata:   []byte(`{"order_id":"SKU-5","buyer":"x"}`),
		OccurredAt: occurred,
	}

	ev, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ev.Amount.Equal(decimal.RequireFromString("25.5")) {
		t.Errorf("amount = %s", ev.Amount)
	}
	if ev.Currency != "USD" {
		t.Errorf("currency = %q", ev.Currency)
	}
	if ev.Metadata.OrderID != "SKU-5" {
		t.Errorf("order_id = %q", ev.Metadata.OrderID)
	}
	if ev.Metadata.Extra["buyer"] != "x" {
		t.Errorf("extra = %v", ev.Metadata.Extra)
	}
	if ev.Kind != event.KindReal || !ev.Kind.Known() {
		t.Errorf("kind = %q", ev.Kind)
	}
}

func TestDecodeNumericOrderID(t *testing.T) {
	r := &event.Record{ID: "3", Amount: "1", Currency: "EUR", Metadata: []byte(`{"order_id": 12345678901234567890}`), OccurredAt: occurred}
	ev, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Metadata.OrderID != "12345678901234567890" {
		t.Errorf("order_id = %q", ev.Metadata.OrderID)
	}
}

func TestDecodeErrors(t *testing.T) {
	base := event.Record{ID: "1", Amount: "10", Currency: "USD", OccurredAt: occurred}

	tests := []struct {
		name  string
		mut   func(*event.Record)
		field string
	}{
		{"missing id", func(r *event.Record) { r.ID = "" }, "id"},
		{"empty amount", func(r *event.Record) { r.Amount = "" }, "amount"},
		{"bad amount", func(r *event.Record) { r.Amount = "ten" }, "amount"},
		{"bad currency", func(r *event.Record) { r.Currency = "US" }, "currency"},
		{"zero time", func(r *event.Record) { r.OccurredAt = time.Time{} }, "occurred_at"},
		{"bad json", func(r *event.Record) { r.Metadata = []byte(`{`) }, "metadata_json"},
		{"object order id", func(r *event.Record) { r.Metadata = []byte(`{"order_id":{}}`) }, "metadata_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mut(&r)
			_, err := r.Decode()
			var fe *event.FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	ev := &event.RevenueEvent{
		ID:         "9",
		Amount:     decimal.RequireFromString("19.995"),
		Currency:   "USD",
		Kind:       event.KindReal,
		Metadata:   event.Metadata{OrderID: "ORD-1", Extra: map[string]any{"channel": "web"}},
		OccurredAt: occurred,
	}

	rec := event.NewRecord(ev)
	var raw map[string]any
	if err := json.Unmarshal(rec.Metadata, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["order_id"] != "ORD-1" || raw["channel"] != "web" {
		t.Errorf("metadata = %v", raw)
	}

	back, err := rec.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.Amount.Equal(ev.Amount) || back.Metadata.OrderID != "ORD-1" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestKind(t *testing.T) {
	if !event.KindSimulated.Simulated() {
		t.Error("simulated kind must report Simulated")
	}
	if event.Kind("youtube_ads").Known() {
		t.Error("youtube_ads should not be a known kind")
	}
}
