// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	AI       AIConfig       `mapstructure:"ai"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Data     DataConfig     `mapstructure:"data"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AIConfig configures the AI extraction adapter. BaseURL may point at any
// OpenAI-compatible endpoint; APIKey is the only required credential and
// only when a site marks AI extraction as mandatory.
type AIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// FetchConfig governs the static and headless fetchers.
type FetchConfig struct {
	UserAgent         string   `mapstructure:"user_agent"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	NavTimeoutSeconds int      `mapstructure:"nav_timeout_seconds"`
	HeadlessMaxTabs   int      `mapstructure:"headless_max_tabs"`
	BlockResources    bool     `mapstructure:"block_resources"`
	DetectorMinBytes  int      `mapstructure:"detector_min_bytes"`
	DetectorKeywords  []string `mapstructure:"detector_keywords"`
}

// PipelineConfig controls pacing and checkpointing for a run.
type PipelineConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	DelaySeconds int `mapstructure:"delay_seconds"`
	MaxPages     int `mapstructure:"max_pages"`
	MaxItems     int `mapstructure:"max_items"`
}

// DataConfig sets where the store, vocabulary files, and raw snapshots live.
type DataConfig struct {
	Dir            string `mapstructure:"dir"`
	SnapshotDir    string `mapstructure:"snapshot_dir"`
	MaxSnapshotKB  int    `mapstructure:"max_snapshot_kb"`
	CategoriesFile string `mapstructure:"categories_file"`
	LocationsFile  string `mapstructure:"locations_file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	// The empty default registers the key so AutomaticEnv can surface
	// HARVESTER_AI_API_KEY during Unmarshal.
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_seconds", 120)
	v.SetDefault("ai.max_body_bytes", 120_000)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.nav_timeout_seconds", 60)
	v.SetDefault("fetch.headless_max_tabs", 1)
	v.SetDefault("fetch.block_resources", true)
	v.SetDefault("fetch.detector_min_bytes", 2000)
	v.SetDefault("fetch.detector_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"window.__APOLLO_STATE__",
	})
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.delay_seconds", 2)
	v.SetDefault("pipeline.max_pages", 50)
	v.SetDefault("pipeline.max_items", 0)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.snapshot_dir", "data/snapshots")
	v.SetDefault("data.max_snapshot_kb", 5120)
	v.SetDefault("data.categories_file", "categories.json")
	v.SetDefault("data.locations_file", "locations.json")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.nav_timeout_seconds must be > 0")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	if c.Pipeline.MaxPages <= 0 {
		return fmt.Errorf("pipeline.max_pages must be > 0")
	}
	if c.AI.TimeoutSeconds <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be > 0")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	return nil
}

// FetchTimeout converts the per-fetch budget into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout is the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetch.NavTimeoutSeconds) * time.Second
}

// AITimeout is the budget for a single AI extraction call. It is
// deliberately longer than the fetch timeout.
func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// PacingDelay is the politeness delay between consecutive fetches.
func (c Config) PacingDelay() time.Duration {
	return time.Duration(c.Pipeline.DelaySeconds) * time.Second
}
