package identity_test

import (
	"testing"

	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/identity"
)

func TestTransactionID(t *testing.T) {
	tests := []struct {
		name      string
		ev        event.RevenueEvent
		want      string
		synthetic bool
	}{
		{"order id wins", event.RevenueEvent{ID: "42", Metadata: event.Metadata{OrderID: "ORD-1"}}, "ORD-1", false},
		{"order id verbatim", event.RevenueEvent{ID: "7", Metadata: event.Metadata{OrderID: " sku-5"}}, " sku-5", false},
		{"no order id", event.RevenueEvent{ID: "42"}, "discovery_42", true},
		{"blank order id", event.RevenueEvent{ID: "9", Metadata: event.Metadata{OrderID: "   "}}, "discovery_9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identity.TransactionID(&tt.ev)
			if got != tt.want {
				t.Errorf("TransactionID = %q, want %q", got, tt.want)
			}
			if identity.IsSynthetic(got) != tt.synthetic {
				t.Errorf("IsSynthetic(%q) = %v, want %v", got, !tt.synthetic, tt.synthetic)
			}
		})
	}
}

func TestTransactionIDIgnoresLocalIDWhenOrderPresent(t *testing.T) {
	a := event.RevenueEvent{ID: "1", Metadata: event.Metadata{OrderID: "ORD-1"}}
	b := event.RevenueEvent{ID: "2", Metadata: event.Metadata{OrderID: "ORD-1"}}
	if identity.TransactionID(&a) != identity.TransactionID(&b) {
		t.Error("same order id from different local ids must resolve identically")
	}
}
