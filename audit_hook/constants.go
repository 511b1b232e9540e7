package audithook

// Action constants for audit events.
const (
	// Sync actions
	ActionSyncStarted   = "sync.started"
	ActionSyncCompleted = "sync.completed"
	ActionSyncFailed    = "sync.failed"

	// Entry actions
	ActionEntryRecorded = "entry.recorded"
	ActionEntrySkipped  = "entry.skipped"

	// Event actions
	ActionEventRejected = "event.rejected"
)

// Resource constants for audit events.
const (
	ResourceSync  = "sync"
	ResourceEntry = "ledger_entry"
	ResourceEvent = "revenue_event"
)

// Category constants for audit events.
const (
	CategoryReconciliation = "reconciliation"
	CategoryLedger         = "ledger"
	CategoryDataQuality    = "data_quality"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
