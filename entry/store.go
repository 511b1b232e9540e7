package entry

import "context"

// Store is append-only access to growth_ledger_entries. There is no update
// or delete: entries are never mutated once written.
type Store interface {
	HasEntry(ctx context.Context, transactionID string) (bool, error)
	GetEntry(ctx context.Context, transactionID string) (*Entry, error)

	// AppendEntries writes entries atomically and returns the transaction
	// ids it actually inserted. An entry whose transaction id already exists
	// is dropped silently; it is not an error.
	AppendEntries(ctx context.Context, entries []*Entry) ([]string, error)

	CountEntries(ctx context.Context) (int64, error)
	// RecentEntries returns up to limit entries, newest created_at first.
	RecentEntries(ctx context.Context, limit int) ([]*Entry, error)
	// ClearedTotals sums amount_cents of CLEARED entries per currency.
	ClearedTotals(ctx context.Context) (map[string]int64, error)
}
