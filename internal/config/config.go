// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"guidecrawler/internal/crawler"
	"guidecrawler/internal/extract"
)

// Config captures all configuration knobs loaded via Viper. It is immutable
// once loaded and passed by value into the orchestrator and engine.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Output     OutputConfig     `mapstructure:"output"`
	Relational RelationalConfig `mapstructure:"relational"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig bounds the traversal.
type CrawlerConfig struct {
	StartURL        string        `mapstructure:"start_url"`
	ScopePrefix     string        `mapstructure:"scope_prefix"`
	MaxDepth        int           `mapstructure:"max_depth"` // -1 means unlimited
	MaxPages        int           `mapstructure:"max_pages"`
	PoliteDelay     time.Duration `mapstructure:"polite_delay"`
	SkipURLContains []string      `mapstructure:"skip_url_contains"`
}

// BrowserConfig is forwarded to the rendering capability.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
	IgnoreHTTPSErrors bool          `mapstructure:"ignore_https_errors"`
}

// ExtractConfig picks the extraction selectors.
type ExtractConfig struct {
	ContentSelectors []string `mapstructure:"content_selectors"`
	SectionSelector  string   `mapstructure:"section_selector"`
}

// OutputConfig controls the document sink. An empty path disables it.
type OutputConfig struct {
	DocumentPath string `mapstructure:"document_path"`
}

// RelationalConfig controls the Postgres sink.
type RelationalConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	ConnectionString string `mapstructure:"connection_string"`
	MaxConns         int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GUIDECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	// The scope prefix is compared against normalized URLs, so it must be
	// canonical itself. A trailing-slash prefix such as
	// "https://ex.com/guides/" would otherwise reject its own scope root,
	// whose normalized form carries no trailing slash.
	scope, err := crawler.NormalizeURL(cfg.Crawler.ScopePrefix)
	if err != nil {
		return Config{}, fmt.Errorf("invalid crawler.scope_prefix: %w", err)
	}
	cfg.Crawler.ScopePrefix = scope

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_depth", 1)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.polite_delay", 500*time.Millisecond)
	v.SetDefault("crawler.skip_url_contains", []string{})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.ignore_https_errors", false)
	v.SetDefault("extract.content_selectors", extract.DefaultContentSelectors)
	v.SetDefault("extract.section_selector", extract.DefaultSectionSelector)
	v.SetDefault("relational.enabled", false)
	v.SetDefault("relational.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.StartURL == "" {
		return fmt.Errorf("crawler.start_url is required")
	}
	if !strings.HasPrefix(c.Crawler.StartURL, "http") {
		return fmt.Errorf("crawler.start_url must begin with http, got %q", c.Crawler.StartURL)
	}
	if c.Crawler.ScopePrefix == "" {
		return fmt.Errorf("crawler.scope_prefix is required")
	}
	if !strings.HasPrefix(c.Crawler.ScopePrefix, "http") {
		return fmt.Errorf("crawler.scope_prefix must begin with http, got %q", c.Crawler.ScopePrefix)
	}
	if c.Crawler.MaxDepth < -1 {
		return fmt.Errorf("crawler.max_depth must be >= -1, got %d", c.Crawler.MaxDepth)
	}
	if c.Crawler.MaxPages < 1 {
		return fmt.Errorf("crawler.max_pages must be >= 1, got %d", c.Crawler.MaxPages)
	}
	if c.Crawler.PoliteDelay < 0 {
		return fmt.Errorf("crawler.polite_delay must be >= 0")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if c.Relational.Enabled && c.Relational.ConnectionString == "" {
		return fmt.Errorf("relational.connection_string must be set when relational.enabled is true")
	}
	return nil
}
