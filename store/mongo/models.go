package mongo

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
	"github.com/xraph/growthledger/types"
)

// ==================== Event documents ====================

// recordFromDocument maps a revenue_events document to a record. The
// discovery layer writes loosely typed documents, so every field is
// converted to its stored text form and validated later by Record.Decode.
func recordFromDocument(doc bson.M) (*event.Record, error) {
	r := &event.Record{
		ID:       scalarString(doc["_id"]),
		Amount:   scalarString(doc["amount"]),
		Currency: scalarString(doc["currency"]),
		Source:   scalarString(doc["source"]),
		Kind:     scalarString(doc["kind"]),
	}

	switch m := doc["metadata_json"].(type) {
	case nil:
	case string:
		r.Metadata = []byte(m)
	case bson.D, bson.M:
		raw, err := bson.MarshalExtJSON(m, false, false)
		if err != nil {
			return nil, fmt.Errorf("event %s: metadata_json: %w", r.ID, err)
		}
		r.Metadata = raw
	default:
		r.Metadata = []byte(fmt.Sprintf("%v", m))
	}

	switch t := doc["occurred_at"].(type) {
	case nil:
	case bson.DateTime:
		r.OccurredAt = t.Time().UTC()
	case time.Time:
		r.OccurredAt = t.UTC()
	case int32:
		r.OccurredAt = time.Unix(int64(t), 0).UTC()
	case int64:
		r.OccurredAt = time.Unix(t, 0).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			r.OccurredAt = parsed.UTC()
		} else {
			r.RawOccurredAt = t
		}
	default:
		r.RawOccurredAt = fmt.Sprintf("%v", t)
	}
	return r, nil
}

// scalarString renders a BSON scalar the way a SQL text cast would.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bson.Decimal128:
		return t.String()
	case bson.ObjectID:
		return t.Hex()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ==================== Entry models ====================

type entryModel struct {
	ID            string          `bson:"_id"`
	TransactionID string          `bson:"transaction_id"`
	Stream        string          `bson:"stream"`
	AmountCents   int64           `bson:"amount_cents"`
	Currency      string          `bson:"currency"`
	Status        string          `bson:"status"`
	Provenance    provenanceModel `bson:"provenance_meta"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

type provenanceModel struct {
	OriginName     string         `bson:"origin_name"`
	OriginType     string         `bson:"origin_type"`
	DiscoveryID    string         `bson:"discovery_id"`
	SyncTime       time.Time      `bson:"sync_time"`
	QualityScore   float64        `bson:"quality_score"`
	SyncID         string         `bson:"sync_id,omitempty"`
	ClassifiedBy   string         `bson:"classified_by,omitempty"`
	SourceMetadata map[string]any `bson:"source_metadata,omitempty"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	p := e.Provenance
	return &entryModel{
		ID:            e.ID.String(),
		TransactionID: e.TransactionID,
		Stream:        string(e.Stream),
		AmountCents:   e.AmountCents,
		Currency:      e.Currency,
		Status:        string(e.Status),
		Provenance: provenanceModel{
			OriginName:     p.OriginName,
			OriginType:     p.OriginType,
			DiscoveryID:    p.DiscoveryID,
			SyncTime:       p.SyncTime.UTC(),
			QualityScore:   p.QualityScore,
			SyncID:         p.SyncID,
			ClassifiedBy:   p.ClassifiedBy,
			SourceMetadata: p.SourceMetadata,
		},
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", m.TransactionID, err)
	}
	p := m.Provenance
	return &entry.Entry{
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            entryID,
		TransactionID: m.TransactionID,
		Stream:        entry.Stream(m.Stream),
		AmountCents:   m.AmountCents,
		Currency:      m.Currency,
		Status:        entry.Status(m.Status),
		Provenance: entry.Provenance{
			OriginName:     p.OriginName,
			OriginType:     p.OriginType,
			DiscoveryID:    p.DiscoveryID,
			SyncTime:       p.SyncTime.UTC(),
			QualityScore:   p.QualityScore,
			SyncID:         p.SyncID,
			ClassifiedBy:   p.ClassifiedBy,
			SourceMetadata: p.SourceMetadata,
		},
	}, nil
}

// ==================== Payout models ====================

type payoutModel struct {
	ID         string     `bson:"_id"`
	Stream     string     `bson:"stream"`
	Currency   string     `bson:"currency"`
	TotalCents int64      `bson:"total_cents"`
	EntryCount int64      `bson:"entry_count"`
	CycleStart time.Time  `bson:"cycle_start"`
	CycleEnd   time.Time  `bson:"cycle_end"`
	Status     string     `bson:"status"`
	SettledAt  *time.Time `bson:"settled_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func fromPayoutModel(m *payoutModel) (*payout.Payout, error) {
	payoutID, err := id.ParsePayoutID(m.ID)
	if err != nil {
		return nil, err
	}
	return &payout.Payout{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:         payoutID,
		Stream:     entry.Stream(m.Stream),
		Currency:   m.Currency,
		TotalCents: m.TotalCents,
		EntryCount: m.EntryCount,
		CycleStart: m.CycleStart.UTC(),
		CycleEnd:   m.CycleEnd.UTC(),
		Status:     payout.Status(m.Status),
		SettledAt:  m.SettledAt,
	}, nil
}
