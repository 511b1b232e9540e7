package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
)

func scanEntry(row pgx.Row) (*entry.Entry, error) {
	var (
		e              entry.Entry
		rawID          string
		stream, status string
		prov           []byte
	)
	if err := row.Scan(&rawID, &e.TransactionID, &stream, &e.AmountCents, &e.Currency,
		&status, &prov, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	entryID, err := id.ParseEntryID(rawID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.TransactionID, err)
	}
	e.ID = entryID
	e.Stream = entry.Stream(stream)
	e.Status = entry.Status(status)
	if err := json.Unmarshal(prov, &e.Provenance); err != nil {
		return nil, fmt.Errorf("entry %s: provenance: %w", e.TransactionID, err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanPayout(row pgx.Row) (*payout.Payout, error) {
	var (
		p              payout.Payout
		rawID          string
		stream, status string
		settledAt      *time.Time
	)
	if err := row.Scan(&rawID, &stream, &p.Currency, &p.TotalCents, &p.EntryCount,
		&p.CycleStart, &p.CycleEnd, &status, &settledAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	payoutID, err := id.ParsePayoutID(rawID)
	if err != nil {
		return nil, err
	}
	p.ID = payoutID
	p.Stream = entry.Stream(stream)
	p.Status = payout.Status(status)
	p.SettledAt = settledAt
	return &p, nil
}
