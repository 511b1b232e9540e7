package growthledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/growthledger/classify"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
	"github.com/xraph/growthledger/id"
	"github.com/xraph/growthledger/identity"
	"github.com/xraph/growthledger/plugin"
	"github.com/xraph/growthledger/store"
	"github.com/xraph/growthledger/types"
)

const tracerName = "github.com/xraph/growthledger"

// Skip reasons passed to OnEntrySkipped hooks.
const (
	SkipReasonDuplicate  = "duplicate"
	SkipReasonConcurrent = "concurrent"
)

// RunLock serialises overlapping syncs. TryLock returns ErrSyncInProgress
// when another holder owns the lock.
type RunLock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, err error)
}

// Engine reconciles discovery events into the growth ledger.
type Engine struct {
	source     store.Source
	ledger     store.Ledger
	plugins    *plugin.Registry
	logger     *slog.Logger
	classifier *classify.Classifier
	policy     FailurePolicy
	lock       RunLock
	tracer     trace.Tracer
	now        func() time.Time
	migrate    bool
}

// New creates an engine over the given stores. Either store may be nil; Sync
// then fails with a ConfigurationError before reading anything.
func New(source store.Source, ledger store.Ledger, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		ledger:     ledger,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		classifier: classify.New(),
		policy:     AbortBatch,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		migrate:    true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithFailurePolicy sets how conversion errors affect a batch.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithClassifier replaces the default stream classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithRunLock makes Sync hold l for its duration.
func WithRunLock(l RunLock) Option {
	return func(e *Engine) {
		e.lock = l
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithAutoMigrate controls whether Start applies ledger migrations.
// It is on by default.
func WithAutoMigrate(enabled bool) Option {
	return func(e *Engine) {
		e.migrate = enabled
	}
}

// WithTracer sets the tracer used for sync spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the wall clock used for sync_time and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Plugins returns the engine's plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Policy returns the configured failure policy.
func (e *Engine) Policy() FailurePolicy { return e.policy }

// Start checks both stores, applies ledger migrations unless disabled and
// initialises plugins. Calling Start is optional; Sync performs its own
// preflight.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.preflight(ctx); err != nil {
		return err
	}
	if e.migrate {
		if err := e.ledger.Migrate(ctx); err != nil {
			return &StorageError{Op: "migrate ledger", Err: err}
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("growthledger started",
		"failure_policy", e.policy.String(),
		"plugins", e.plugins.Count(),
		"run_lock", e.lock != nil,
	)
	return nil
}

// Stop notifies plugins and closes both stores.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())

	var errs []error
	if e.source != nil {
		errs = append(errs, e.source.Close())
	}
	if e.ledger != nil {
		errs = append(errs, e.ledger.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) preflight(ctx context.Context) error {
	if e.source == nil {
		return &ConfigurationError{Store: "source", Err: ErrSourceMissing}
	}
	if e.ledger == nil {
		return &ConfigurationError{Store: "ledger", Err: ErrLedgerMissing}
	}
	if err := e.source.Ping(ctx); err != nil {
		return &ConfigurationError{Store: "source", Err: err}
	}
	if err := e.ledger.Ping(ctx); err != nil {
		return &ConfigurationError{Store: "ledger", Err: err}
	}
	return nil
}

// Sync reconciles every non-simulated source event into the ledger and
// commits the new entries in one atomic append. Events whose transaction id
// is already recorded are skipped. On error nothing is committed and the
// report is nil.
func (e *Engine) Sync(ctx context.Context) (*SyncReport, error) {
	syncID := id.NewSyncRunID().String()
	ctx, span := e.tracer.Start(ctx, "growthledger.Sync",
		trace.WithAttributes(
			attribute.String("growthledger.sync_id", syncID),
			attribute.String("growthledger.failure_policy", e.policy.String()),
		),
	)
	defer span.End()

	logger := e.logger.With("sync_id", syncID)
	started := e.now().UTC()

	fail := func(err error) (*SyncReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("sync aborted", "error", err)
		e.plugins.EmitSyncFailed(ctx, syncID, err)
		return nil, err
	}

	if err := e.preflight(ctx); err != nil {
		return fail(err)
	}

	if e.lock != nil {
		unlock, err := e.lock.TryLock(ctx)
		if err != nil {
			if !errors.Is(err, ErrSyncInProgress) {
				err = &ConfigurationError{Store: "lock", Err: err}
			}
			return fail(err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("run lock release failed", "error", err)
			}
		}()
	}

	e.plugins.EmitSyncStarted(ctx, syncID)

	report := &SyncReport{SyncID: syncID, StartedAt: started, Entries: []LogEntry{}}
	staged, err := e.stage(ctx, report, logger)
	if err != nil {
		return fail(err)
	}

	var inserted []string
	if len(staged) > 0 {
		inserted, err = e.ledger.AppendEntries(ctx, staged)
		if err != nil {
			return fail(&StorageError{Op: "commit entries", Err: err})
		}
	}
	e.settle(ctx, report, inserted, logger)

	report.tally()
	report.FinishedAt = e.now().UTC()
	e.emitOutcomes(ctx, report, staged)

	span.SetAttributes(
		attribute.Int("growthledger.synced", report.SyncedCount),
		attribute.Int("growthledger.skipped", report.SkippedCount),
		attribute.Int("growthledger.rejected", report.RejectedCount),
	)
	logger.Info("sync completed",
		"synced", report.SyncedCount,
		"skipped", report.SkippedCount,
		"rejected", report.RejectedCount,
		"total_value", report.TotalValue.String(),
		"elapsed", report.Duration(),
	)
	e.plugins.EmitSyncCompleted(ctx, syncID,
		report.SyncedCount, report.SkippedCount, report.RejectedCount, report.Duration())

	return report, nil
}

// stage reads every reconcilable event and builds the entries to commit.
// Log lines are appended to report in source order; staged entries are
// provisionally marked synced until the commit confirms them.
func (e *Engine) stage(ctx context.Context, report *SyncReport, logger *slog.Logger) ([]*entry.Entry, error) {
	records, err := e.source.ListReconcilable(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list events", Err: err}
	}

	seen := make(map[string]struct{}, len(records))
	staged := make([]*entry.Entry, 0, len(records))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Backends already filter; the invariant is enforced here too.
		if event.Kind(rec.Kind).Simulated() {
			continue
		}

		ent, txID, err := e.convert(rec, report.SyncID, report.StartedAt, seen)
		if err != nil {
			if e.policy != SkipInvalid {
				return nil, err
			}
			logger.Warn("event rejected", "event_id", rec.ID, "error", err)
			report.Entries = append(report.Entries, LogEntry{
				EventID: rec.ID,
				Outcome: OutcomeRejected,
				Reason:  err.Error(),
			})
			continue
		}

		if ent == nil {
			logger.Debug("transaction already in batch", "event_id", rec.ID, "transaction_id", txID)
			report.Entries = append(report.Entries, skippedLine(rec.ID, txID, OutcomeSkippedDuplicate))
			continue
		}

		exists, err := e.ledger.HasEntry(ctx, txID)
		if err != nil {
			return nil, &StorageError{Op: "check entry " + txID, Err: err}
		}
		seen[txID] = struct{}{}
		if exists {
			logger.Debug("transaction already recorded", "event_id", rec.ID, "transaction_id", txID)
			report.Entries = append(report.Entries, skippedLine(rec.ID, txID, OutcomeSkippedDuplicate))
			continue
		}

		staged = append(staged, ent)
		report.Entries = append(report.Entries, LogEntry{
			EventID:       rec.ID,
			TransactionID: txID,
			Outcome:       OutcomeSynced,
			Stream:        ent.Stream,
			AmountCents:   ent.AmountCents,
			Currency:      ent.Currency,
		})
	}

	return staged, nil
}

// convert decodes rec and builds its entry. A nil entry with a nil error
// means the transaction id was already seen earlier in the batch.
func (e *Engine) convert(rec *event.Record, syncID string, syncTime time.Time, seen map[string]struct{}) (*entry.Entry, string, error) {
	ev, err := rec.Decode()
	if err != nil {
		return nil, "", &ConversionError{EventID: rec.ID, Err: err}
	}

	txID := identity.TransactionID(ev)
	if _, dup := seen[txID]; dup {
		return nil, txID, nil
	}

	amount, err := types.FromMajor(ev.Amount, ev.Currency)
	if err != nil {
		return nil, txID, &ConversionError{EventID: ev.ID, Err: err}
	}

	class := e.classifier.Classify(ev.Kind, ev.Source)

	return &entry.Entry{
		Entity:        types.EntityAt(ev.OccurredAt),
		ID:            id.NewEntryID(),
		TransactionID: txID,
		Stream:        class.Stream,
		AmountCents:   amount.Amount,
		Currency:      amount.Currency,
		Status:        entry.StatusCleared,
		Provenance: entry.Provenance{
			OriginName:     ev.Source,
			OriginType:     string(ev.Kind),
			DiscoveryID:    ev.ID,
			SyncTime:       syncTime,
			QualityScore:   qualityScore(txID, class),
			SyncID:         syncID,
			ClassifiedBy:   string(class.By),
			SourceMetadata: sourceMetadata(ev.Metadata),
		},
	}, txID, nil
}

// settle flips staged lines the commit did not insert to skipped: another
// writer recorded the same transaction between the pre-check and the commit.
// A row carrying this run's sync id was written by an earlier attempt of a
// retried commit and stays synced.
func (e *Engine) settle(ctx context.Context, report *SyncReport, inserted []string, logger *slog.Logger) {
	ok := make(map[string]struct{}, len(inserted))
	for _, txID := range inserted {
		ok[txID] = struct{}{}
	}
	for i := range report.Entries {
		le := &report.Entries[i]
		if le.Outcome != OutcomeSynced {
			continue
		}
		if _, committed := ok[le.TransactionID]; committed {
			continue
		}
		if e.recordedBy(ctx, le.TransactionID, report.SyncID, logger) {
			logger.Debug("transaction committed by a retried attempt", "transaction_id", le.TransactionID)
			continue
		}
		logger.Info("transaction recorded concurrently", "event_id", le.EventID, "transaction_id", le.TransactionID)
		*le = skippedLine(le.EventID, le.TransactionID, OutcomeSkippedConcurrent)
	}
}

// recordedBy reports whether the stored entry for txID was written by syncID.
// A failed lookup counts as another writer.
func (e *Engine) recordedBy(ctx context.Context, txID, syncID string, logger *slog.Logger) bool {
	stored, err := e.ledger.GetEntry(ctx, txID)
	if err != nil {
		logger.Warn("checking conflicting entry", "transaction_id", txID, "error", err)
		return false
	}
	return stored.Provenance.SyncID == syncID
}

func (e *Engine) emitOutcomes(ctx context.Context, report *SyncReport, staged []*entry.Entry) {
	byTx := make(map[string]*entry.Entry, len(staged))
	for _, ent := range staged {
		byTx[ent.TransactionID] = ent
	}

	for _, le := range report.Entries {
		switch le.Outcome {
		case OutcomeSynced:
			e.plugins.EmitEntryRecorded(ctx, report.SyncID, byTx[le.TransactionID])
		case OutcomeSkippedDuplicate:
			e.plugins.EmitEntrySkipped(ctx, report.SyncID, le.TransactionID, SkipReasonDuplicate)
		case OutcomeSkippedConcurrent:
			e.plugins.EmitEntrySkipped(ctx, report.SyncID, le.TransactionID, SkipReasonConcurrent)
		case OutcomeRejected:
			e.plugins.EmitEventRejected(ctx, report.SyncID, le.EventID, errors.New(le.Reason))
		}
	}
}

func skippedLine(eventID, txID string, o Outcome) LogEntry {
	return LogEntry{
		EventID:       eventID,
		TransactionID: txID,
		Outcome:       o,
		Reason:        ErrDuplicateTransaction.Error(),
	}
}

// qualityScore rates how much an entry's attribution can be trusted. Entries
// keyed on a gateway order id and classified by a known rule score 1.
func qualityScore(txID string, class classify.Result) float64 {
	score := 1.0
	if identity.IsSynthetic(txID) {
		score -= 0.5
	}
	if class.By == classify.ByFallback {
		score -= 0.25
	}
	return score
}

func sourceMetadata(m event.Metadata) map[string]any {
	if m.OrderID == "" && len(m.Extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.OrderID != "" {
		out["order_id"] = m.OrderID
	}
	return out
}
