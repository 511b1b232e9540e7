package mongo

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestScalarString(t *testing.T) {
	dec, err := bson.ParseDecimal128("19.995")
	if err != nil {
		t.Fatalf("ParseDecimal128: %v", err)
	}
	oid := bson.NewObjectID()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "25.50", "25.50"},
		{"int32", int32(7), "7"},
		{"int64", int64(42), "42"},
		{"float", 25.5, "25.5"},
		{"decimal128", dec, "19.995"},
		{"object id", oid, oid.Hex()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scalarString(tt.in); got != tt.want {
				t.Errorf("scalarString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecordFromDocument(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":           int64(5),
		"amount":        "25.50",
		"currency":      "usd",
		"source":        "shopify",
		"kind":          "real",
		"metadata_json": bson.D{{Key: "order_id", Value: "SKU-5"}},
		"occurred_at":   bson.NewDateTimeFromTime(at),
	}

	r, err := recordFromDocument(doc)
	if err != nil {
		t.Fatalf("recordFromDocument: %v", err)
	}
	if r.ID != "5" || r.Amount != "25.50" || r.Kind != "real" {
		t.Errorf("unexpected record: %+v", r)
	}
	if !r.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", r.OccurredAt, at)
	}

	ev, err := r.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Metadata.OrderID != "SKU-5" {
		t.Errorf("OrderID = %q, want SKU-5", ev.Metadata.OrderID)
	}
	if ev.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", ev.Currency)
	}
}

func TestRecordFromDocumentBadTimestamp(t *testing.T) {
	r, err := recordFromDocument(bson.M{"_id": "e1", "amount": "1", "currency": "USD", "occurred_at": "yesterday"})
	if err != nil {
		t.Fatalf("recordFromDocument: %v", err)
	}
	if !r.OccurredAt.IsZero() || r.RawOccurredAt != "yesterday" {
		t.Errorf("expected raw timestamp to be kept, got %+v", r)
	}
	if _, err := r.Decode(); err == nil {
		t.Error("expected Decode to reject the timestamp")
	}
}

func TestDuplicateIndexes(t *testing.T) {
	dup := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			{WriteError: mongo.WriteError{Index: 1, Code: 11000}},
			{WriteError: mongo.WriteError{Index: 3, Code: 11000}},
		},
	}
	rejected, err := duplicateIndexes(dup)
	if err != nil {
		t.Fatalf("duplicateIndexes: %v", err)
	}
	if len(rejected) != 2 || !rejected[1] || !rejected[3] {
		t.Errorf("rejected = %v, want {1, 3}", rejected)
	}

	mixed := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			{WriteError: mongo.WriteError{Index: 0, Code: 11000}},
			{WriteError: mongo.WriteError{Index: 2, Code: 121}},
		},
	}
	if _, err := duplicateIndexes(mixed); err == nil {
		t.Error("expected a document validation failure to surface")
	}

	plain := errors.New("boom")
	if _, err := duplicateIndexes(plain); !errors.Is(err, plain) {
		t.Errorf("expected plain error back, got %v", err)
	}

	if rejected, err := duplicateIndexes(nil); err != nil || len(rejected) != 0 {
		t.Errorf("duplicateIndexes(nil) = %v, %v", rejected, err)
	}
}
