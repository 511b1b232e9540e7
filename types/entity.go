package types

import "time"

// Entity carries the row timestamps of a ledger record.
//
// Ledger rows copy their timestamps from the business event they record, not
// from the wall clock of the run that wrote them, so that a re-sync of the
// same history produces identical rows.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityAt creates an Entity whose timestamps are both t, normalised to UTC.
func EntityAt(t time.Time) Entity {
	t = t.UTC()
	return Entity{
		CreatedAt: t,
		UpdatedAt: t,
	}
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
