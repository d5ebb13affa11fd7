package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.TargetURL)
	assert.Equal(t, DefaultPages, cfg.Pages)
	assert.Equal(t, 20, cfg.TotalBatches)
	assert.Equal(t, 5, cfg.UsersPerBatch)
	assert.Equal(t, 2, cfg.ConcurrentBatches)
	assert.Equal(t, 4, cfg.Composition.Domestic)
	assert.Equal(t, 1, cfg.Composition.International)
	assert.Equal(t, 2*time.Second, cfg.GroupPause)
	assert.Equal(t, 30*time.Second, cfg.Session.NavigationTimeout)
	assert.InDelta(t, 0.4, cfg.Session.ClickProbability, 1e-9)
	assert.NotEmpty(t, cfg.Session.AnalyticsPatterns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.TotalUsers())
}

func TestLoad_TargetUsersDerivesBatches(t *testing.T) {
	v := newViper()
	v.Set("target_users", 23)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TotalBatches)
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	yaml := `
url: https://portal.example.gov
batches: 3
users_per_batch: 10
concurrent_batches: 3
group_pause: 500ms
pages: ["/", "/services"]
session:
  nav_timeout: 15s
  click_probability: 0.25
localities:
  domestic:
    - {city: Austin, region: TX}
  international:
    - {city: Oslo, region: Norway}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.gov", cfg.TargetURL)
	assert.Equal(t, 3, cfg.TotalBatches)
	assert.Equal(t, 10, cfg.UsersPerBatch)
	assert.Equal(t, 500*time.Millisecond, cfg.GroupPause)
	assert.Equal(t, []string{"/", "/services"}, cfg.Pages)
	assert.Equal(t, 15*time.Second, cfg.Session.NavigationTimeout)
	require.Len(t, cfg.Localities.Domestic, 1)
	assert.Equal(t, "Austin", cfg.Localities.Domestic[0].City)
	assert.Equal(t, "Norway", cfg.Localities.International[0].Region)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v *viper.Viper)
	}{
		{"relative url", func(v *viper.Viper) { v.Set("url", "/portal") }},
		{"ftp url", func(v *viper.Viper) { v.Set("url", "ftp://portal") }},
		{"no pages", func(v *viper.Viper) { v.Set("pages", []string{}) }},
		{"zero batches", func(v *viper.Viper) { v.Set("batches", 0) }},
		{"zero concurrency", func(v *viper.Viper) { v.Set("concurrent_batches", 0) }},
		{"batch too small for ratio", func(v *viper.Viper) { v.Set("users_per_batch", 4) }},
		{"empty ratio", func(v *viper.Viper) {
			v.Set("composition.domestic", 0)
			v.Set("composition.international", 0)
		}},
		{"negative pause", func(v *viper.Viper) { v.Set("group_pause", "-1s") }},
		{"click probability above one", func(v *viper.Viper) { v.Set("session.click_probability", 1.5) }},
		{"zero nav timeout", func(v *viper.Viper) { v.Set("session.nav_timeout", "0s") }},
		{"inverted scroll pause", func(v *viper.Viper) { v.Set("session.scroll_pause_max", "1ms") }},
		{"half a locality override", func(v *viper.Viper) {
			v.Set("localities.domestic", []map[string]string{{"city": "Austin", "region": "TX"}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			tt.mutate(v)
			_, err := Load(v)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
