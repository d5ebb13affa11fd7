// Package analytics recognises analytics-beacon traffic by URL.
package analytics

import "strings"

// DefaultPatterns are URL substrings emitted by the portal's analytics
// instrumentation (Vercel insights and GA collect endpoints).
var DefaultPatterns = []string{
	"/_vercel/insights",
	"vercel-insights.com",
	"/insights/",
	"google-analytics.com/g/collect",
	"/analytics",
}

// Matcher reports whether a response URL is an analytics beacon.
// Matching is a case-insensitive substring test.
type Matcher struct {
	patterns []string
}

func NewMatcher(patterns []string) Matcher {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	m := Matcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			m.patterns = append(m.patterns, strings.ToLower(p))
		}
	}
	return m
}

func (m Matcher) Match(url string) bool {
	u := strings.ToLower(url)
	for _, p := range m.patterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

func (m Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}
