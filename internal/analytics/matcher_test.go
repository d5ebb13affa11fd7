package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Defaults(t *testing.T) {
	m := NewMatcher(nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://portal.example.gov/_vercel/insights/view", true},
		{"https://vitals.vercel-insights.com/v1/vitals", true},
		{"https://www.google-analytics.com/g/collect?v=2", true},
		{"https://portal.example.gov/api/ANALYTICS/event", true},
		{"https://portal.example.gov/services", false},
		{"https://portal.example.gov/static/app.js", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.url), tt.url)
	}
}

func TestMatcher_Custom(t *testing.T) {
	m := NewMatcher([]string{" /beacon ", ""})

	assert.Equal(t, []string{"/beacon"}, m.Patterns())
	assert.True(t, m.Match("http://localhost/beacon?e=1"))
	assert.False(t, m.Match("http://localhost/_vercel/insights/view"))
}
