package classify_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/growthledger/classify"
	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
)

func TestClassifyBuiltin(t *testing.T) {
	c := classify.New()

	tests := []struct {
		kind   event.Kind
		source string
		want   entry.Stream
		by     classify.By
	}{
		{"fiverr_cooperation", "fiverr", entry.StreamContent, classify.ByExact},
		{"affiliate_amazon", "amazon", entry.StreamAffiliate, classify.ByExact},
		{"real", "shopier", entry.StreamPOD, classify.ByExact},
		{"youtube_ads", "youtube", entry.StreamPOD, classify.ByFallback},
		{"Fiverr_Gig", "", entry.StreamContent, classify.BySubstring},
		{"AFFILIATE_etsy", "", entry.StreamAffiliate, classify.BySubstring},
		{"", "", entry.StreamPOD, classify.ByFallback},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := c.Classify(tt.kind, tt.source)
			if got.Stream != tt.want {
				t.Errorf("stream = %s, want %s", got.Stream, tt.want)
			}
			if got.By != tt.by {
				t.Errorf("by = %s, want %s", got.By, tt.by)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := classify.New()
	first := c.Classify("affiliate_x", "blog")
	for i := 0; i < 100; i++ {
		if got := c.Classify("affiliate_x", "blog"); got != first {
			t.Fatalf("iteration %d: %v != %v", i, got, first)
		}
	}
}

func TestOperatorRulesPrecedeSubstring(t *testing.T) {
	c := classify.New(
		classify.Rule{Contains: "YouTube", Stream: "CONTENT"},
		classify.Rule{Contains: "affiliate", Source: "partnerstack", Stream: "PARTNER"},
	)

	if got := c.Classify("youtube_ads", ""); got.Stream != entry.StreamContent || got.By != classify.ByRule {
		t.Errorf("youtube_ads = %+v", got)
	}
	if got := c.Classify("affiliate_saas", "PartnerStack"); got.Stream != "PARTNER" {
		t.Errorf("affiliate_saas from partnerstack = %+v", got)
	}
	if got := c.Classify("affiliate_saas", "other"); got.Stream != entry.StreamAffiliate || got.By != classify.BySubstring {
		t.Errorf("affiliate_saas from other = %+v", got)
	}
	// Exact kinds are not overridable.
	if got := c.Classify(event.KindAffiliateAmazon, "partnerstack"); got.Stream != entry.StreamAffiliate {
		t.Errorf("affiliate_amazon = %+v", got)
	}
}

func TestNilClassifier(t *testing.T) {
	var c *classify.Classifier
	if got := c.Classify("fiverr_x", ""); got.Stream != entry.StreamContent {
		t.Errorf("nil classifier: %+v", got)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := "rules:\n  - contains: youtube\n    stream: CONTENT\n  - source: gumroad\n    stream: CONTENT\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := classify.LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	c := classify.New(rules...)
	if got := c.Classify("digital_download", "Gumroad"); got.Stream != entry.StreamContent {
		t.Errorf("gumroad = %+v", got)
	}
}

func TestParseRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no matcher", "rules:\n  - stream: CONTENT\n"},
		{"bad stream", "rules:\n  - contains: x\n    stream: content\n"},
		{"empty stream", "rules:\n  - contains: x\n"},
		{"unknown field", "rules:\n  - contain: x\n    stream: POD\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := classify.ParseRules(strings.NewReader(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseRulesEmpty(t *testing.T) {
	rules, err := classify.ParseRules(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules", len(rules))
	}
}
