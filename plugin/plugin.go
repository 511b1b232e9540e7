// Package plugin provides an extensible plugin system for the growth ledger.
// Plugins can hook into reconciliation lifecycle events to extend
// functionality. Hooks observe; they can never veto or alter a sync.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/growthledger/entry"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is stopping.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Sync hooks
// ──────────────────────────────────────────────────

// OnSyncStarted is called after preflight succeeds, before any event is read.
type OnSyncStarted interface {
	Plugin
	OnSyncStarted(ctx context.Context, syncID string) error
}

// OnEntryRecorded is called for each entry committed by a sync.
type OnEntryRecorded interface {
	Plugin
	OnEntryRecorded(ctx context.Context, syncID string, e *entry.Entry) error
}

// OnEntrySkipped is called for each event whose transaction id was already
// in the ledger. Reason is "duplicate" or "concurrent".
type OnEntrySkipped interface {
	Plugin
	OnEntrySkipped(ctx context.Context, syncID, transactionID, reason string) error
}

// OnEventRejected is called for each event dropped under the skip-invalid
// failure policy.
type OnEventRejected interface {
	Plugin
	OnEventRejected(ctx context.Context, syncID, eventID string, err error) error
}

// OnSyncCompleted is called after a sync commits.
type OnSyncCompleted interface {
	Plugin
	OnSyncCompleted(ctx context.Context, syncID string, synced, skipped, rejected int, elapsed time.Duration) error
}

// OnSyncFailed is called when a sync aborts. Nothing was committed.
type OnSyncFailed interface {
	Plugin
	OnSyncFailed(ctx context.Context, syncID string, err error) error
}
