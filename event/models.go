// Package event models the revenue events produced by the upstream discovery
// layer. Events are read-only to the growth ledger: they are decoded and
// validated here, at the boundary, and never mutated.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/growthledger/types"
)

// Kind tags how the discovery layer found an event.
type Kind string

// Kinds emitted by the discovery layer today. Unknown kinds are accepted and
// classified by substring fallback.
const (
	KindReal              Kind = "real"
	KindSimulated         Kind = "simulated"
	KindFiverrCooperation Kind = "fiverr_cooperation"
	KindAffiliateAmazon   Kind = "affiliate_amazon"
)

// Known reports whether k is one of the enumerated kinds.
func (k Kind) Known() bool {
	switch k {
	case KindReal, KindSimulated, KindFiverrCooperation, KindAffiliateAmazon:
		return true
	}
	return false
}

// Simulated reports whether events of this kind must never be reconciled.
func (k Kind) Simulated() bool { return k == KindSimulated }

// Metadata is the typed view of an event's metadata_json column. OrderID is
// the only key the ledger interprets; all other keys pass through in Extra.
type Metadata struct {
	OrderID string         `json:"order_id,omitempty"`
	Extra   map[string]any `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*m = Metadata{}
	if v, ok := raw["order_id"]; ok {
		switch t := v.(type) {
		case string:
			m.OrderID = t
		case json.Number:
			m.OrderID = t.String()
		case nil:
		default:
			return fmt.Errorf("order_id: unsupported type %T", v)
		}
		delete(raw, "order_id")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.OrderID != "" {
		out["order_id"] = m.OrderID
	}
	return json.Marshal(out)
}

type RevenueEvent struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Source     string          `json:"source"`
	Kind       Kind            `json:"kind"`
	Metadata   Metadata        `json:"metadata"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Record is a revenue_events row as the discovery layer stored it. Amount and
// metadata stay undecoded so that a malformed row can be reported per event.
type Record struct {
	ID         string    `json:"id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"`
	Kind       string    `json:"kind"`
	Metadata   []byte    `json:"metadata_json,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// RawOccurredAt holds the stored timestamp when a backend could not
	// parse it. OccurredAt is zero in that case.
	RawOccurredAt string `json:"-"`
}

// FieldError reports a record field that could not be decoded.
type FieldError struct {
	EventID string
	Field   string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("event %s: %s: %v", e.EventID, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

var (
	errMissing  = errors.New("missing value")
	errBadShape = errors.New("not an ISO 4217 code")
)

// Decode validates r and returns the typed event.
func (r *Record) Decode() (*RevenueEvent, error) {
	fail := func(field string, err error) (*RevenueEvent, error) {
		return nil, &FieldError{EventID: r.ID, Field: field, Err: err}
	}

	if strings.TrimSpace(r.ID) == "" {
		return fail("id", errMissing)
	}

	rawAmount := strings.TrimSpace(r.Amount)
	if rawAmount == "" {
		return fail("amount", errMissing)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fail("amount", err)
	}

	currency := types.NormalizeCurrency(r.Currency)
	if !types.ValidCurrency(currency) {
		return fail("currency", fmt.Errorf("%w: %q", errBadShape, r.Currency))
	}

	if r.OccurredAt.IsZero() {
		if r.RawOccurredAt != "" {
			return fail("occurred_at", fmt.Errorf("unparseable timestamp %q", r.RawOccurredAt))
		}
		return fail("occurred_at", errMissing)
	}

	var meta Metadata
	if trimmed := bytes.TrimSpace(r.Metadata); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &meta); err != nil {
			return fail("metadata_json", err)
		}
	}

	return &RevenueEvent{
		ID:         r.ID,
		Amount:     amount,
		Currency:   currency,
		Source:     r.Source,
		Kind:       Kind(r.Kind),
		Metadata:   meta,
		OccurredAt: r.OccurredAt.UTC(),
	}, nil
}

// NewRecord encodes ev in its stored form. Fixtures and in-memory sources
// use it to build rows.
func NewRecord(ev *RevenueEvent) *Record {
	var meta []byte
	if ev.Metadata.OrderID != "" || len(ev.Metadata.Extra) > 0 {
		meta, _ = json.Marshal(ev.Metadata) //nolint:errcheck // map of JSON values always marshals
	}
	return &Record{
		ID:         ev.ID,
		Amount:     ev.Amount.String(),
		Currency:   ev.Currency,
		Source:     ev.Source,
		Kind:       string(ev.Kind),
		Metadata:   meta,
		OccurredAt: ev.OccurredAt,
	}
}
