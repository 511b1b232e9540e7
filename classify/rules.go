package classify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/growthledger/entry"
)

// Rule maps events to a stream. Contains is a case-insensitive substring of
// the kind; Source is a case-insensitive exact match on the event source.
// When both are set, both must match.
type Rule struct {
	Contains string       `yaml:"contains"`
	Source   string       `yaml:"source"`
	Stream   entry.Stream `yaml:"stream"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

func (r Rule) normalized() Rule {
	r.Contains = strings.ToLower(strings.TrimSpace(r.Contains))
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
	return r
}

func (r Rule) matches(kind, source string) bool {
	if r.Contains == "" && r.Source == "" {
		return false
	}
	if r.Contains != "" && !strings.Contains(kind, r.Contains) {
		return false
	}
	if r.Source != "" && r.Source != source {
		return false
	}
	return true
}

// LoadRules reads classifier rules from a YAML file.
//
//	rules:
//	  - contains: youtube
//	    stream: CONTENT
//	  - source: gumroad
//	    stream: CONTENT
func LoadRules(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classify: open rules: %w", err)
	}
	defer f.Close()
	return ParseRules(f)
}

// ParseRules decodes and validates rules from r.
func ParseRules(r io.Reader) ([]Rule, error) {
	var file rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("classify: parse rules: %w", err)
	}

	for i, rule := range file.Rules {
		if strings.TrimSpace(rule.Contains) == "" && strings.TrimSpace(rule.Source) == "" {
			return nil, fmt.Errorf("classify: rule %d: contains or source is required", i)
		}
		s, err := entry.ParseStream(string(rule.Stream))
		if err != nil {
			return nil, fmt.Errorf("classify: rule %d: %w", i, err)
		}
		file.Rules[i].Stream = s
	}
	return file.Rules, nil
}
