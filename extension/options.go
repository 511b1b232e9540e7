package extension

import (
	"time"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/plugin"
	"github.com/xraph/growthledger/store"
)

// Option configures the growth ledger Forge extension.
type Option func(*Extension)

// WithSource sets the discovery event store.
func WithSource(s store.Source) Option {
	return func(e *Extension) {
		e.source = s
	}
}

// WithLedger sets the ledger store.
func WithLedger(l store.Ledger) Option {
	return func(e *Extension) {
		e.ledger = l
	}
}

// WithEngineOption passes a growthledger.Option through to the engine.
func WithEngineOption(opt growthledger.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, growthledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithFailurePolicy sets the batch failure policy.
func WithFailurePolicy(p growthledger.FailurePolicy) Option {
	return func(e *Extension) { e.config.FailurePolicy = p.String() }
}

// WithClassifierRules sets the classifier rules file.
func WithClassifierRules(path string) Option {
	return func(e *Extension) { e.config.ClassifierRules = path }
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
