// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and SORTIE_* env vars.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFile, when set, also receives JSON log lines.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Timezone is the zone the feed's naive timestamps belong to.
	Timezone string `koanf:"timezone" validate:"required"`

	// PreferencesPath points at the JSON preferences document.
	PreferencesPath string `koanf:"preferences_path"`

	// WindowDays bounds the upcoming-event window.
	WindowDays int `koanf:"window_days" validate:"min=1"`

	// TopK is the shortlist length, TopN the number of events in the digest.
	TopK int `koanf:"top_k" validate:"min=1"`
	TopN int `koanf:"top_n" validate:"min=1,ltefield=TopK"`

	// EmbWeight and BoroughWeight blend the two sub-scores.
	EmbWeight     float64 `koanf:"emb_weight" validate:"gte=0"`
	BoroughWeight float64 `koanf:"borough_weight" validate:"gte=0"`

	// DescriptionCap limits how much of a description is embedded.
	DescriptionCap int `koanf:"description_cap" validate:"min=1"`

	// Embedding provider.
	EmbedProvider  string `koanf:"embed_provider" validate:"oneof=ollama openai"`
	EmbedModel     string `koanf:"embed_model" validate:"required"`
	OllamaHost     string `koanf:"ollama_host"`
	OpenAIAPIKey   string `koanf:"openai_api_key"`
	OpenAIBaseURL  string `koanf:"openai_base_url"`
	EmbedBatchSize int    `koanf:"embed_batch_size" validate:"min=1"`
	EmbedTimeoutMS int    `koanf:"embed_timeout_ms" validate:"min=1"`

	// BreakerFailures opens a provider circuit after that many consecutive failures.
	BreakerFailures int `koanf:"breaker_failures" validate:"min=1"`
	// BreakerCooldownMS is how long an open circuit waits before probing again.
	BreakerCooldownMS int `koanf:"breaker_cooldown_ms" validate:"min=1"`

	// CacheBackend selects the persistent embedding cache: file, badger or none.
	CacheBackend string `koanf:"cache_backend" validate:"oneof=file badger none"`
	CachePath    string `koanf:"cache_path"`
	// MemoSize bounds the in-process vector memo.
	MemoSize int `koanf:"memo_size" validate:"min=1"`

	// LLM used to pick the final events and write the digest.
	LLMProvider  string `koanf:"llm_provider" validate:"oneof=none ollama openai"`
	LLMModel     string `koanf:"llm_model"`
	LLMTimeoutMS int    `koanf:"llm_timeout_ms" validate:"min=1"`

	// Feed.
	FeedSource    string `koanf:"feed_source" validate:"oneof=ckan file"`
	CKANURL       string `koanf:"ckan_url"`
	DatasetQuery  string `koanf:"dataset_query"`
	FeedPath      string `koanf:"feed_path"`
	FeedTimeoutMS int    `koanf:"feed_timeout_ms" validate:"min=1"`

	// Weather.
	WeatherEnabled   bool    `koanf:"weather_enabled"`
	WeatherURL       string  `koanf:"weather_url"`
	WeatherRPS       float64 `koanf:"weather_rps" validate:"gt=0"`
	WeatherTimeoutMS int     `koanf:"weather_timeout_ms" validate:"min=1"`

	// Outputs.
	ReportPath  string `koanf:"report_path" validate:"required"`
	StatePath   string `koanf:"state_path"`
	Incremental bool   `koanf:"incremental"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		Timezone:          "America/Toronto",
		PreferencesPath:   "preferences.json",
		WindowDays:        7,
		TopK:              30,
		TopN:              10,
		EmbWeight:         0.7,
		BoroughWeight:     0.3,
		DescriptionCap:    300,
		EmbedProvider:     "ollama",
		EmbedModel:        "nomic-embed-text",
		OllamaHost:        "http://localhost:11434",
		EmbedBatchSize:    64,
		EmbedTimeoutMS:    30_000,
		BreakerFailures:   5,
		BreakerCooldownMS: 30_000,
		CacheBackend:      "file",
		CachePath:         "data/embeddings.json",
		MemoSize:          50_000,
		LLMProvider:       "none",
		LLMModel:          "llama3.1",
		LLMTimeoutMS:      60_000,
		FeedSource:        "ckan",
		CKANURL:           "https://donnees.montreal.ca/api/3/action",
		DatasetQuery:      "evenements publics",
		FeedTimeoutMS:     60_000,
		WeatherEnabled:    true,
		WeatherURL:        "https://api.open-meteo.com/v1/forecast",
		WeatherRPS:        5,
		WeatherTimeoutMS:  15_000,
		ReportPath:        "reports/weekly_tldr.md",
		StatePath:         "data/last_run.json",
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// EmbedTimeout is the per-call embedding deadline.
func (c *Config) EmbedTimeout() time.Duration { return ms(c.EmbedTimeoutMS) }

// LLMTimeout is the per-call LLM deadline.
func (c *Config) LLMTimeout() time.Duration { return ms(c.LLMTimeoutMS) }

// FeedTimeout bounds a dataset download.
func (c *Config) FeedTimeout() time.Duration { return ms(c.FeedTimeoutMS) }

// WeatherTimeout is the per-request weather deadline.
func (c *Config) WeatherTimeout() time.Duration { return ms(c.WeatherTimeoutMS) }

// BreakerCooldown is how long an open provider circuit stays open.
func (c *Config) BreakerCooldown() time.Duration { return ms(c.BreakerCooldownMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
