package event

import "context"

// Store is read-only access to the discovery layer's revenue_events table.
// Every method excludes simulated events.
type Store interface {
	// ListReconcilable returns every non-simulated record in source
	// iteration order (ascending local id).
	ListReconcilable(ctx context.Context) ([]*Record, error)
	CountReconcilable(ctx context.Context) (int64, error)
	// RecentReconcilable returns up to limit records, newest occurred_at first.
	RecentReconcilable(ctx context.Context, limit int) ([]*Record, error)
}
