package extension

import "time"

// Config holds the growth ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.growthledger" or
// "growthledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// FailurePolicy is "abort" (default) or "skip_invalid".
	FailurePolicy string `json:"failure_policy" mapstructure:"failure_policy" yaml:"failure_policy"`

	// ClassifierRules is the path of a YAML file with operator
	// classification rules.
	ClassifierRules string `json:"classifier_rules" mapstructure:"classifier_rules" yaml:"classifier_rules"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// MonitorRecent is how many recent rows each audit section lists
	// (default: 5).
	MonitorRecent int `json:"monitor_recent" mapstructure:"monitor_recent" yaml:"monitor_recent"`

	// MonitorTimeout bounds each audit section query (default: 10s).
	MonitorTimeout time.Duration `json:"monitor_timeout" mapstructure:"monitor_timeout" yaml:"monitor_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailurePolicy:  "abort",
		HookTimeout:    5 * time.Second,
		MonitorRecent:  5,
		MonitorTimeout: 10 * time.Second,
	}
}
