// Package config loads the simulation run configuration through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"portalsim/internal/analytics"
	"portalsim/internal/workload"
)

// ErrInvalidConfig is returned when the configuration violates an invariant.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// DefaultPages are the portal paths every session samples from.
var DefaultPages = []string{"/", "/services", "/about", "/contact"}

// Config is the read-only configuration of one run.
type Config struct {
	TargetURL         string               `mapstructure:"url" json:"url"`
	Pages             []string             `mapstructure:"pages" json:"pages"`
	TotalBatches      int                  `mapstructure:"batches" json:"batches"`
	TargetUsers       int                  `mapstructure:"target_users" json:"target_users,omitempty"`
	UsersPerBatch     int                  `mapstructure:"users_per_batch" json:"users_per_batch"`
	ConcurrentBatches int                  `mapstructure:"concurrent_batches" json:"concurrent_batches"`
	Composition       workload.Composition `mapstructure:"composition" json:"composition"`
	GroupPause        time.Duration        `mapstructure:"group_pause" json:"group_pause"`
	LaunchRate        float64              `mapstructure:"launch_rate" json:"launch_rate,omitempty"`
	Seed              int64                `mapstructure:"seed" json:"seed,omitempty"`

	Session    SessionConfig  `mapstructure:"session" json:"session"`
	Browser    BrowserConfig  `mapstructure:"browser" json:"browser"`
	Localities LocalityConfig `mapstructure:"localities" json:"-"`

	Out         string    `mapstructure:"out" json:"-"`
	MetricsAddr string    `mapstructure:"metrics_addr" json:"-"`
	History     string    `mapstructure:"history" json:"-"`
	TUI         bool      `mapstructure:"tui" json:"-"`
	Log         LogConfig `mapstructure:"log" json:"-"`
}

type SessionConfig struct {
	NavigationTimeout time.Duration `mapstructure:"nav_timeout" json:"nav_timeout"`
	ClickProbability  float64       `mapstructure:"click_probability" json:"click_probability"`
	AnalyticsPatterns []string      `mapstructure:"analytics_patterns" json:"analytics_patterns"`
	ScrollPauseMin    time.Duration `mapstructure:"scroll_pause_min" json:"scroll_pause_min"`
	ScrollPauseMax    time.Duration `mapstructure:"scroll_pause_max" json:"scroll_pause_max"`
	PageDelayMin      time.Duration `mapstructure:"page_delay_min" json:"page_delay_min"`
	PageDelayMax      time.Duration `mapstructure:"page_delay_max" json:"page_delay_max"`
}

type BrowserConfig struct {
	RemoteURL string `mapstructure:"remote_url" json:"remote_url,omitempty"`
	Headful   bool   `mapstructure:"headful" json:"headful"`
	NoSandbox bool   `mapstructure:"no_sandbox" json:"no_sandbox"`
}

// LocalityConfig overrides the built-in locality pools when non-empty.
type LocalityConfig struct {
	Domestic      []workload.Locality `mapstructure:"domestic"`
	International []workload.Locality `mapstructure:"international"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", "http://localhost:8080")
	v.SetDefault("pages", DefaultPages)
	v.SetDefault("batches", 20)
	v.SetDefault("target_users", 0)
	v.SetDefault("users_per_batch", 5)
	v.SetDefault("concurrent_batches", 2)
	v.SetDefault("composition.domestic", 4)
	v.SetDefault("composition.international", 1)
	v.SetDefault("group_pause", 2*time.Second)
	v.SetDefault("launch_rate", 0.0)
	v.SetDefault("seed", 0)

	v.SetDefault("session.nav_timeout", 30*time.Second)
	v.SetDefault("session.click_probability", 0.4)
	v.SetDefault("session.analytics_patterns", analytics.DefaultPatterns)
	v.SetDefault("session.scroll_pause_min", 300*time.Millisecond)
	v.SetDefault("session.scroll_pause_max", 800*time.Millisecond)
	v.SetDefault("session.page_delay_min", 1*time.Second)
	v.SetDefault("session.page_delay_max", 3*time.Second)

	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headful", false)
	v.SetDefault("browser.no_sandbox", false)

	v.SetDefault("out", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("history", "")
	v.SetDefault("tui", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load unmarshals v, derives TotalBatches from TargetUsers and validates.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.applyTargetUsers()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyTargetUsers() {
	if c.TargetUsers > 0 && c.UsersPerBatch > 0 {
		c.TotalBatches = (c.TargetUsers + c.UsersPerBatch - 1) / c.UsersPerBatch
	}
}

func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("url %q must be an absolute http(s) URL", c.TargetURL)
	}
	if len(c.Pages) == 0 {
		return invalid("at least one page is required")
	}
	if c.TotalBatches < 1 {
		return invalid("batches must be >= 1, got %d", c.TotalBatches)
	}
	if c.ConcurrentBatches < 1 {
		return invalid("concurrent_batches must be >= 1, got %d", c.ConcurrentBatches)
	}
	if c.Composition.Domestic < 0 || c.Composition.International < 0 || c.Composition.Total() == 0 {
		return invalid("composition %s is not a valid ratio", c.Composition)
	}
	if c.UsersPerBatch < c.Composition.Total() {
		return invalid("users_per_batch %d cannot satisfy composition %s (needs >= %d)",
			c.UsersPerBatch, c.Composition, c.Composition.Total())
	}
	if c.GroupPause < 0 {
		return invalid("group_pause must not be negative")
	}
	if c.LaunchRate < 0 {
		return invalid("launch_rate must not be negative")
	}
	if c.Session.NavigationTimeout <= 0 {
		return invalid("session.nav_timeout must be positive")
	}
	if c.Session.ClickProbability < 0 || c.Session.ClickProbability > 1 {
		return invalid("session.click_probability must be within [0,1], got %v", c.Session.ClickProbability)
	}
	if c.Session.ScrollPauseMax < c.Session.ScrollPauseMin || c.Session.PageDelayMax < c.Session.PageDelayMin {
		return invalid("pause maxima must not be below minima")
	}
	if len(c.Localities.Domestic) > 0 || len(c.Localities.International) > 0 {
		if err := workload.ValidatePools(c.Localities.Domestic, c.Localities.International); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// TotalUsers is the number of sessions the run will attempt.
func (c Config) TotalUsers() int {
	return c.TotalBatches * c.UsersPerBatch
}
