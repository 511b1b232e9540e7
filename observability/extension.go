// Package observability provides a metrics extension for the growth ledger
// that records sync lifecycle counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin          = (*MetricsExtension)(nil)
	_ plugin.OnInit          = (*MetricsExtension)(nil)
	_ plugin.OnSyncStarted   = (*MetricsExtension)(nil)
	_ plugin.OnEntryRecorded = (*MetricsExtension)(nil)
	_ plugin.OnEntrySkipped  = (*MetricsExtension)(nil)
	_ plugin.OnEventRejected = (*MetricsExtension)(nil)
	_ plugin.OnSyncCompleted = (*MetricsExtension)(nil)
	_ plugin.OnSyncFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records sync lifecycle metrics.
// Register it as an engine plugin to track reconciliation runs.
type MetricsExtension struct {
	factory MetricFactory

	// Run metrics
	SyncStarted   Counter
	SyncCompleted Counter
	SyncFailed    Counter
	SyncLatency   Histogram
	SyncBatchSize Histogram

	// Entry metrics
	EntriesRecorded   Counter
	CentsRecorded     Counter
	EntriesDuplicate  Counter
	EntriesConcurrent Counter
	EventsRejected    Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		SyncStarted:   factory.Counter("growthledger.sync.started"),
		SyncCompleted: factory.Counter("growthledger.sync.completed"),
		SyncFailed:    factory.Counter("growthledger.sync.failed"),
		SyncLatency:   factory.Histogram("growthledger.sync.latency_ms"),
		SyncBatchSize: factory.Histogram("growthledger.sync.batch.size"),

		EntriesRecorded:   factory.Counter("growthledger.entries.recorded"),
		CentsRecorded:     factory.Counter("growthledger.entries.amount_cents"),
		EntriesDuplicate:  factory.Counter("growthledger.entries.skipped.duplicate"),
		EntriesConcurrent: factory.Counter("growthledger.entries.skipped.concurrent"),
		EventsRejected:    factory.Counter("growthledger.events.rejected"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnSyncStarted implements plugin.OnSyncStarted.
func (m *MetricsExtension) OnSyncStarted(_ context.Context, _ string) error {
	m.SyncStarted.Inc()
	return nil
}

// OnEntryRecorded implements plugin.OnEntryRecorded.
func (m *MetricsExtension) OnEntryRecorded(_ context.Context, _ string, e *entry.Entry) error {
	m.EntriesRecorded.Inc()
	m.CentsRecorded.Add(float64(e.AmountCents))
	return nil
}

// OnEntrySkipped implements plugin.OnEntrySkipped.
func (m *MetricsExtension) OnEntrySkipped(_ context.Context, _, _, reason string) error {
	if reason == growthledger.SkipReasonConcurrent {
		m.EntriesConcurrent.Inc()
	} else {
		m.EntriesDuplicate.Inc()
	}
	return nil
}

// OnEventRejected implements plugin.OnEventRejected.
func (m *MetricsExtension) OnEventRejected(_ context.Context, _, _ string, _ error) error {
	m.EventsRejected.Inc()
	return nil
}

// OnSyncCompleted implements plugin.OnSyncCompleted.
func (m *MetricsExtension) OnSyncCompleted(_ context.Context, _ string, synced, skipped, rejected int, elapsed time.Duration) error {
	m.SyncCompleted.Inc()
	m.SyncLatency.Observe(float64(elapsed.Milliseconds()))
	m.SyncBatchSize.Observe(float64(synced + skipped + rejected))
	return nil
}

// OnSyncFailed implements plugin.OnSyncFailed.
func (m *MetricsExtension) OnSyncFailed(_ context.Context, _ string, _ error) error {
	m.SyncFailed.Inc()
	return nil
}
