// Package classifier decides whether an observed log line or console
// argument is related to the analytics instrumentation being monitored.
package classifier

import (
	"strings"
)

// Classifier is a pure keyword predicate over log lines. Matching is
// case-insensitive. A nil or empty input never matches and never panics.
type Classifier struct {
	keywords []string   // any-of substring rules, stored lowercased
	compound [][]string // each entry matches when all terms are present
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithKeywords replaces the any-of substring rule set.
func WithKeywords(keywords []string) Option {
	return func(c *Classifier) {
		c.keywords = lowerAll(keywords)
	}
}

// WithCompoundRules replaces the all-of rule set. Each entry is a list
// of terms that must all be present for the entry to match.
func WithCompoundRules(rules [][]string) Option {
	return func(c *Classifier) {
		c.compound = make([][]string, 0, len(rules))
		for _, terms := range rules {
			if len(terms) == 0 {
				continue
			}
			c.compound = append(c.compound, lowerAll(terms))
		}
	}
}

// New creates a Classifier with the default dataLayer rule set.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		keywords: lowerAll(DefaultKeywords()),
		compound: [][]string{{"event", "track"}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultKeywords returns the built-in any-of substring rules.
func DefaultKeywords() []string {
	return []string{
		"datalayer",
		"gtag",
		"google tag manager",
		"gtm",
		"ga(",
		"google-analytics",
		"_gaq",
		"datalayer.push",
	}
}

// DefaultPerformanceKeywords returns the built-in rules for the
// performance/network log channel.
func DefaultPerformanceKeywords() []string {
	return []string{
		"gtag",
		"google-analytics",
		"googletagmanager",
	}
}

// Match reports whether the line is relevant. Empty input is a
// non-match.
func (c *Classifier) Match(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(line)

	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	for _, terms := range c.compound {
		if containsAll(lower, terms) {
			return true
		}
	}

	return false
}

func containsAll(lower string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
