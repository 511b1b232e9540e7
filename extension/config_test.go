package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{ClassifierRules: "rules.yaml"})
	if cfg.FailurePolicy != "abort" || cfg.HookTimeout != 5*time.Second || cfg.MonitorRecent != 5 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.ClassifierRules != "rules.yaml" {
		t.Errorf("ClassifierRules = %q", cfg.ClassifierRules)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{FailurePolicy: "skip_invalid", MonitorRecent: 10}
	progCfg := Config{
		FailurePolicy:   "abort",
		ClassifierRules: "ops/rules.yaml",
		DisableMigrate:  true,
		HookTimeout:     time.Second,
	}

	cfg := mergeConfigurations(yamlCfg, progCfg)
	if cfg.FailurePolicy != "skip_invalid" {
		t.Errorf("FailurePolicy = %q, YAML should win", cfg.FailurePolicy)
	}
	if cfg.ClassifierRules != "ops/rules.yaml" {
		t.Errorf("ClassifierRules = %q, programmatic should fill the gap", cfg.ClassifierRules)
	}
	if !cfg.DisableMigrate {
		t.Error("programmatic DisableMigrate should override")
	}
	if cfg.HookTimeout != time.Second || cfg.MonitorRecent != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MonitorTimeout != 10*time.Second {
		t.Errorf("MonitorTimeout = %v, want default", cfg.MonitorTimeout)
	}
}

func TestBuildEngineOptsRejectsUnknownPolicy(t *testing.T) {
	e := New(WithConfig(Config{FailurePolicy: "retry"}))
	if _, err := e.buildEngineOpts(); err == nil {
		t.Fatal("expected error for unknown failure policy")
	}
}
