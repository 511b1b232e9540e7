// Package audithook bridges growth ledger sync events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Extension)(nil)
	_ plugin.OnSyncStarted   = (*Extension)(nil)
	_ plugin.OnEntryRecorded = (*Extension)(nil)
	_ plugin.OnEntrySkipped  = (*Extension)(nil)
	_ plugin.OnEventRejected = (*Extension)(nil)
	_ plugin.OnSyncCompleted = (*Extension)(nil)
	_ plugin.OnSyncFailed    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges sync lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Sync lifecycle hooks
// ──────────────────────────────────────────────────

// OnSyncStarted implements plugin.OnSyncStarted.
func (e *Extension) OnSyncStarted(ctx context.Context, syncID string) error {
	return e.record(ctx, ActionSyncStarted, SeverityInfo, OutcomeSuccess,
		ResourceSync, syncID, CategoryReconciliation, nil,
		"sync_id", syncID,
	)
}

// OnSyncCompleted implements plugin.OnSyncCompleted. A run that rejected
// events is recorded as partial.
func (e *Extension) OnSyncCompleted(ctx context.Context, syncID string, synced, skipped, rejected int, elapsed time.Duration) error {
	outcome, severity := OutcomeSuccess, SeverityInfo
	if rejected > 0 {
		outcome, severity = OutcomePartial, SeverityWarning
	}
	return e.record(ctx, ActionSyncCompleted, severity, outcome,
		ResourceSync, syncID, CategoryReconciliation, nil,
		"synced", synced,
		"skipped", skipped,
		"rejected", rejected,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnSyncFailed implements plugin.OnSyncFailed.
func (e *Extension) OnSyncFailed(ctx context.Context, syncID string, err error) error {
	return e.record(ctx, ActionSyncFailed, SeverityCritical, OutcomeFailure,
		ResourceSync, syncID, CategoryReconciliation, err,
		"sync_id", syncID,
	)
}

// ──────────────────────────────────────────────────
// Entry lifecycle hooks
// ──────────────────────────────────────────────────

// OnEntryRecorded implements plugin.OnEntryRecorded.
func (e *Extension) OnEntryRecorded(ctx context.Context, syncID string, ent *entry.Entry) error {
	return e.record(ctx, ActionEntryRecorded, SeverityInfo, OutcomeSuccess,
		ResourceEntry, ent.TransactionID, CategoryLedger, nil,
		"sync_id", syncID,
		"entry_id", ent.ID.String(),
		"stream", string(ent.Stream),
		"amount_cents", ent.AmountCents,
		"currency", ent.Currency,
		"discovery_id", ent.Provenance.DiscoveryID,
	)
}

// OnEntrySkipped implements plugin.OnEntrySkipped.
func (e *Extension) OnEntrySkipped(ctx context.Context, syncID, transactionID, reason string) error {
	return e.record(ctx, ActionEntrySkipped, SeverityInfo, OutcomeSuccess,
		ResourceEntry, transactionID, CategoryLedger, nil,
		"sync_id", syncID,
		"reason", reason,
	)
}

// OnEventRejected implements plugin.OnEventRejected.
func (e *Extension) OnEventRejected(ctx context.Context, syncID, eventID string, err error) error {
	return e.record(ctx, ActionEventRejected, SeverityWarning, OutcomeFailure,
		ResourceEvent, eventID, CategoryDataQuality, err,
		"sync_id", syncID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
