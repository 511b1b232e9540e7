// Package classify maps revenue event kinds to ledger streams.
//
// Classification is total: every input yields a stream. Known kinds map
// exactly, operator rules come next, then the built-in substring rules, and
// anything left over falls back to POD. The Result records which step
// decided so that fallback entries can be re-classified later.
package classify

import (
	"strings"

	"github.com/xraph/growthledger/entry"
	"github.com/xraph/growthledger/event"
)

// By names the classification step that produced a Result.
type By string

const (
	ByExact     By = "exact"
	ByRule      By = "rule"
	BySubstring By = "substring"
	ByFallback  By = "fallback"
)

// DefaultStream is assigned when nothing else matches.
const DefaultStream = entry.StreamPOD

type Result struct {
	Stream entry.Stream
	By     By
}

var exact = map[event.Kind]entry.Stream{
	event.KindReal:              entry.StreamPOD,
	event.KindFiverrCooperation: entry.StreamContent,
	event.KindAffiliateAmazon:   entry.StreamAffiliate,
}

var builtin = []Rule{
	{Contains: "fiverr", Stream: entry.StreamContent},
	{Contains: "affiliate", Stream: entry.StreamAffiliate},
}

// Classifier is safe for concurrent use after construction.
type Classifier struct {
	rules []Rule
}

// New returns a classifier that evaluates rules before the built-in ones.
func New(rules ...Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		c.rules = append(c.rules, r.normalized())
	}
	return c
}

// Classify returns the stream for an event of the given kind and source.
func (c *Classifier) Classify(kind event.Kind, source string) Result {
	if s, ok := exact[kind]; ok {
		return Result{Stream: s, By: ByExact}
	}

	k := strings.ToLower(string(kind))
	src := strings.ToLower(source)

	if c != nil {
		for _, r := range c.rules {
			if r.matches(k, src) {
				return Result{Stream: r.Stream, By: ByRule}
			}
		}
	}
	for _, r := range builtin {
		if r.matches(k, src) {
			return Result{Stream: r.Stream, By: BySubstring}
		}
	}
	return Result{Stream: DefaultStream, By: ByFallback}
}
