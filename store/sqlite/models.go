package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/payout"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*entry.Entry, error) {
	var (
		e                    entry.Entry
		rawID                string
		stream, status       string
		prov                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(&rawID, &e.TransactionID, &stream, &e.AmountCents, &e.Currency,
		&status, &prov, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	entryID, err := id.ParseEntryID(rawID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.TransactionID, err)
	}
	e.ID = entryID
	e.Stream = entry.Stream(stream)
	e.Status = entry.Status(status)
	if err := json.Unmarshal([]byte(prov), &e.Provenance); err != nil {
		return nil, fmt.Errorf("entry %s: provenance: %w", e.TransactionID, err)
	}
	e.CreatedAt = mustTime(createdAt)
	e.UpdatedAt = mustTime(updatedAt)
	return &e, nil
}

func scanPayout(s scanner) (*payout.Payout, error) {
	var (
		p                    payout.Payout
		rawID                string
		stream, status       string
		cycleStart, cycleEnd string
		settledAt            sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&rawID, &stream, &p.Currency, &p.TotalCents, &p.EntryCount,
		&cycleStart, &cycleEnd, &status, &settledAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	payoutID, err := id.ParsePayoutID(rawID)
	if err != nil {
		return nil, err
	}
	p.ID = payoutID
	p.Stream = entry.Stream(stream)
	p.Status = payout.Status(status)
	p.CycleStart = mustTime(cycleStart)
	p.CycleEnd = mustTime(cycleEnd)
	if settledAt.Valid {
		if t, ok := parseTime(settledAt.String); ok {
			p.SettledAt = &t
		}
	}
	p.CreatedAt = mustTime(createdAt)
	p.UpdatedAt = mustTime(updatedAt)
	return &p, nil
}

// mustTime parses a timestamp this package wrote; zero on garbage.
func mustTime(s string) time.Time {
	t, _ := parseTime(s)
	return t
}
