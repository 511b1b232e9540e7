package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/growthledger/entry"
)

// DefaultHookTimeout bounds a single plugin hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit          []OnInit
	onShutdown      []OnShutdown
	onSyncStarted   []OnSyncStarted
	onEntryRecorded []OnEntryRecorded
	onEntrySkipped  []OnEntrySkipped
	onEventRejected []OnEventRejected
	onSyncCompleted []OnSyncCompleted
	onSyncFailed    []OnSyncFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSyncStarted); ok {
		r.onSyncStarted = append(r.onSyncStarted, v)
	}
	if v, ok := p.(OnEntryRecorded); ok {
		r.onEntryRecorded = append(r.onEntryRecorded, v)
	}
	if v, ok := p.(OnEntrySkipped); ok {
		r.onEntrySkipped = append(r.onEntrySkipped, v)
	}
	if v, ok := p.(OnEventRejected); ok {
		r.onEventRejected = append(r.onEventRejected, v)
	}
	if v, ok := p.(OnSyncCompleted); ok {
		r.onSyncCompleted = append(r.onSyncCompleted, v)
	}
	if v, ok := p.(OnSyncFailed); ok {
		r.onSyncFailed = append(r.onSyncFailed, v)
	}

	r.logger.Debug("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnSyncStarted)(nil)).Elem(), "OnSyncStarted"},
	{reflect.TypeOf((*OnEntryRecorded)(nil)).Elem(), "OnEntryRecorded"},
	{reflect.TypeOf((*OnEntrySkipped)(nil)).Elem(), "OnEntrySkipped"},
	{reflect.TypeOf((*OnEventRejected)(nil)).Elem(), "OnEventRejected"},
	{reflect.TypeOf((*OnSyncCompleted)(nil)).Elem(), "OnSyncCompleted"},
	{reflect.TypeOf((*OnSyncFailed)(nil)).Elem(), "OnSyncFailed"},
}

func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitSyncStarted emits a sync started event.
func (r *Registry) EmitSyncStarted(ctx context.Context, syncID string) {
	r.mu.RLock()
	plugins := r.onSyncStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSyncStarted", func() error {
			return p.OnSyncStarted(ctx, syncID)
		})
	}
}

// EmitEntryRecorded emits an entry recorded event.
func (r *Registry) EmitEntryRecorded(ctx context.Context, syncID string, e *entry.Entry) {
	r.mu.RLock()
	plugins := r.onEntryRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEntryRecorded", func() error {
			return p.OnEntryRecorded(ctx, syncID, e)
		})
	}
}

// EmitEntrySkipped emits an entry skipped event.
func (r *Registry) EmitEntrySkipped(ctx context.Context, syncID, transactionID, reason string) {
	r.mu.RLock()
	plugins := r.onEntrySkipped
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEntrySkipped", func() error {
			return p.OnEntrySkipped(ctx, syncID, transactionID, reason)
		})
	}
}

// EmitEventRejected emits an event rejected event.
func (r *Registry) EmitEventRejected(ctx context.Context, syncID, eventID string, err error) {
	r.mu.RLock()
	plugins := r.onEventRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnEventRejected", func() error {
			return p.OnEventRejected(ctx, syncID, eventID, err)
		})
	}
}

// EmitSyncCompleted emits a sync completed event.
func (r *Registry) EmitSyncCompleted(ctx context.Context, syncID string, synced, skipped, rejected int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSyncCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSyncCompleted", func() error {
			return p.OnSyncCompleted(ctx, syncID, synced, skipped, rejected, elapsed)
		})
	}
}

// EmitSyncFailed emits a sync failed event.
func (r *Registry) EmitSyncFailed(ctx context.Context, syncID string, err error) {
	r.mu.RLock()
	plugins := r.onSyncFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnSyncFailed", func() error {
			return p.OnSyncFailed(ctx, syncID, err)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block reconciliation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
