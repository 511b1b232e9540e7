// Package extension provides the Forge extension adapter for the growth
// ledger.
//
// It implements the forge.Extension interface to integrate the reconciliation
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.growthledger" or
// "growthledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/classify"
	"github.com/xraph/growthledger/monitor"
	"github.com/xraph/growthledger/store"
	"github.com/xraph/growthledger/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "growthledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Idempotent revenue reconciliation into the growth ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the growth ledger engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *growthledger.Engine
	monitor    *monitor.Monitor
	source     store.Source
	ledger     store.Ledger
	engineOpts []growthledger.Option
}

// New creates a new growth ledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *growthledger.Engine { return e.engine }

// Monitor returns the read-only auditor over the same stores.
// This is nil until Register is called.
func (e *Extension) Monitor() *monitor.Monitor { return e.monitor }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory stores if none were provided programmatically.
	if e.source == nil {
		e.source = memory.NewSource()
	}
	if e.ledger == nil {
		e.ledger = memory.New()
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = growthledger.New(e.source, e.ledger, opts...)
	e.monitor = monitor.New(e.source, e.ledger,
		monitor.WithRecent(e.config.MonitorRecent),
		monitor.WithTimeout(e.config.MonitorTimeout),
	)

	if err := vessel.Provide(fapp.Container(), func() (*growthledger.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*monitor.Monitor, error) {
		return e.monitor, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("growthledger: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.source == nil || e.ledger == nil {
		return errors.New("growthledger: stores not initialized")
	}
	return errors.Join(e.source.Ping(ctx), e.ledger.Ping(ctx))
}

// buildEngineOpts constructs engine options from the resolved config.
func (e *Extension) buildEngineOpts() ([]growthledger.Option, error) {
	opts := make([]growthledger.Option, 0, len(e.engineOpts)+4)

	policy, err := growthledger.ParseFailurePolicy(e.config.FailurePolicy)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		growthledger.WithFailurePolicy(policy),
		growthledger.WithAutoMigrate(!e.config.DisableMigrate),
		growthledger.WithHookTimeout(e.config.HookTimeout),
	)

	if e.config.ClassifierRules != "" {
		rules, err := classify.LoadRules(e.config.ClassifierRules)
		if err != nil {
			return nil, fmt.Errorf("growthledger: classifier rules: %w", err)
		}
		opts = append(opts, growthledger.WithClassifier(classify.New(rules...)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("growthledger: configuration is required but not found in config files; " +
				"ensure 'extensions.growthledger' or 'growthledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("growthledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("failure_policy", e.config.FailurePolicy),
		forge.F("classifier_rules", e.config.ClassifierRules),
		forge.F("hook_timeout", e.config.HookTimeout),
		forge.F("monitor_recent", e.config.MonitorRecent),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.growthledger", "growthledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("growthledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("growthledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = defaults.FailurePolicy
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	if cfg.MonitorRecent == 0 {
		cfg.MonitorRecent = defaults.MonitorRecent
	}
	if cfg.MonitorTimeout == 0 {
		cfg.MonitorTimeout = defaults.MonitorTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.FailurePolicy == "" {
		yamlConfig.FailurePolicy = programmaticConfig.FailurePolicy
	}
	if yamlConfig.ClassifierRules == "" {
		yamlConfig.ClassifierRules = programmaticConfig.ClassifierRules
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}
	if yamlConfig.MonitorRecent == 0 {
		yamlConfig.MonitorRecent = programmaticConfig.MonitorRecent
	}
	if yamlConfig.MonitorTimeout == 0 {
		yamlConfig.MonitorTimeout = programmaticConfig.MonitorTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
