// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every pipeline knob loaded via Viper.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PipelineConfig governs the end-to-end run: where output lands, how much
// gets discovered, and how assembly shapes records.
type PipelineConfig struct {
	OutputDir     string  `mapstructure:"output_dir"`
	MaxDocuments  int     `mapstructure:"max_documents"`
	TrainFraction float64 `mapstructure:"train_fraction"`
	Tokenizer     string  `mapstructure:"tokenizer"`
	ChunkWindow   int     `mapstructure:"chunk_window"`
	ChunkOverlap  float64 `mapstructure:"chunk_overlap"`
}

// FetchConfig controls the download worker pool.
type FetchConfig struct {
	Workers            int `mapstructure:"workers"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	RequestTimeoutSec  int `mapstructure:"request_timeout_seconds"`
	ExhaustedTolerance int `mapstructure:"exhausted_tolerance"`
}

// RateLimitConfig sets per-source request pacing.
type RateLimitConfig struct {
	DefaultRPS float64            `mapstructure:"default_rps"`
	Burst      int                `mapstructure:"burst"`
	PerSource  map[string]float64 `mapstructure:"per_source"`
}

// SourcesConfig holds upstream endpoints and enumeration ranges.
type SourcesConfig struct {
	UserAgent   string            `mapstructure:"user_agent"`
	GovUK       GovUKConfig       `mapstructure:"govuk"`
	Legislation LegislationConfig `mapstructure:"legislation"`
	Bailii      BailiiConfig      `mapstructure:"bailii"`
}

// GovUKConfig configures the GOV.UK search and content APIs.
type GovUKConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BaseURL  string   `mapstructure:"base_url"`
	Sections []string `mapstructure:"sections"`
	MaxPages int      `mapstructure:"max_pages"`
}

// LegislationConfig configures legislation.gov.uk browsing.
type LegislationConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	BaseURL   string   `mapstructure:"base_url"`
	Types     []string `mapstructure:"types"`
	StartYear int      `mapstructure:"start_year"`
	EndYear   int      `mapstructure:"end_year"`
}

// BailiiConfig configures BAILII case-law indexes.
type BailiiConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	BaseURL   string   `mapstructure:"base_url"`
	Databases []string `mapstructure:"databases"`
	StartYear int      `mapstructure:"start_year"`
	EndYear   int      `mapstructure:"end_year"`
}

// SinkConfig selects where final datasets land.
type SinkConfig struct {
	Kind     string         `mapstructure:"kind"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the optional relational sink.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// ServerConfig controls the status HTTP server exposed during long runs.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CORPUS")
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
	v.SetDefault("pipeline.output_dir", "data")
	v.SetDefault("pipeline.max_documents", 0)
	v.SetDefault("pipeline.train_fraction", 0.9)
	v.SetDefault("pipeline.tokenizer", "chars")
	v.SetDefault("pipeline.chunk_window", 4000)
	v.SetDefault("pipeline.chunk_overlap", 0.1)
	v.SetDefault("fetch.workers", 4)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.request_timeout_seconds", 30)
	v.SetDefault("fetch.exhausted_tolerance", 0)
	v.SetDefault("ratelimit.default_rps", 2.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("sources.user_agent", "corpus-pipeline/1.0 (research; contact: data@legal-llama.dev)")
	v.SetDefault("sources.govuk.enabled", true)
	v.SetDefault("sources.govuk.base_url", "https://www.gov.uk")
	v.SetDefault("sources.govuk.max_pages", 50)
	v.SetDefault("sources.legislation.enabled", true)
	v.SetDefault("sources.legislation.base_url", "https://www.legislation.gov.uk")
	v.SetDefault("sources.legislation.types", []string{"ukpga", "uksi"})
	v.SetDefault("sources.legislation.start_year", 1980)
	v.SetDefault("sources.bailii.enabled", true)
	v.SetDefault("sources.bailii.base_url", "https://www.bailii.org")
	v.SetDefault("sources.bailii.start_year", 2000)
	v.SetDefault("sink.kind", "parquet")
	v.SetDefault("sink.postgres.table", "training_records")
	v.SetDefault("sink.postgres.max_conns", 4)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir must be set")
	}
	if c.Pipeline.TrainFraction <= 0 || c.Pipeline.TrainFraction >= 1 {
		return fmt.Errorf("pipeline.train_fraction must be in (0, 1)")
	}
	if c.Pipeline.ChunkWindow <= 0 {
		return fmt.Errorf("pipeline.chunk_window must be > 0")
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= 1 {
		return fmt.Errorf("pipeline.chunk_overlap must be in [0, 1)")
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.RequestTimeoutSec <= 0 {
		return fmt.Errorf("fetch.request_timeout_seconds must be > 0")
	}
	if c.RateLimit.DefaultRPS <= 0 {
		return fmt.Errorf("ratelimit.default_rps must be > 0")
	}
	if c.Sink.Kind != "parquet" && c.Sink.Kind != "postgres" {
		return fmt.Errorf("sink.kind must be parquet or postgres")
	}
	if c.Sink.Kind == "postgres" && c.Sink.Postgres.DSN == "" {
		return fmt.Errorf("sink.postgres.dsn must be set when sink.kind is postgres")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// RequestTimeout converts the fetch timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetch.RequestTimeoutSec) * time.Second
}
