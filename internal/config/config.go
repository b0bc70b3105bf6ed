// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Source  SourceConfig  `mapstructure:"source"`
	Wiki    WikiConfig    `mapstructure:"wiki"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Seed    SeedConfig    `mapstructure:"seed"`
	DB      DBConfig      `mapstructure:"db"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines admin API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SourceConfig points at the paginated catalog API.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// WikiConfig points at the wiki-style content API used for cry resolution.
type WikiConfig struct {
	APIURL      string `mapstructure:"api_url"`
	FileBaseURL string `mapstructure:"file_base_url"`
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
	UserAgent      string `mapstructure:"user_agent"`
	// RPS caps requests per second per upstream host. Zero means no cap.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SeedConfig governs ingestion run defaults.
type SeedConfig struct {
	Limit         int `mapstructure:"limit"`
	Offset        int `mapstructure:"offset"`
	Concurrency   int `mapstructure:"concurrency"`
	ProgressEvery int `mapstructure:"progress_every"`
}

// DBConfig controls access to the Postgres store. An empty DSN selects the
// in-memory store, which is only useful for dry runs and tests.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_minutes"`
}

// ArchiveConfig selects where raw source payloads are archived.
// Provider is one of "noop", "local", "gcs".
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig selects the run-event publisher. Provider is "noop" or "pubsub".
type EventsConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SetDefaults installs default values on the given Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.base_url", "https://pokeapi.co/api/v2")
	v.SetDefault("wiki.api_url", "https://www.pokepedia.fr/api.php")
	v.SetDefault("wiki.file_base_url", "https://www.pokepedia.fr")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 350)
	v.SetDefault("http.user_agent", "pokedex-ingest/1.0")
	v.SetDefault("http.rps", 10)
	v.SetDefault("http.burst", 5)
	v.SetDefault("seed.limit", 1350)
	v.SetDefault("seed.offset", 0)
	v.SetDefault("seed.concurrency", 8)
	v.SetDefault("seed.progress_every", 25)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("events.provider", "noop")
	v.SetDefault("logging.development", false)
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEXINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an already prepared
// Viper instance. Callers that bind command-line flags use this entry.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Wiki.APIURL == "" {
		return fmt.Errorf("wiki.api_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Seed.Concurrency <= 0 {
		return fmt.Errorf("seed.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Archive.Provider {
	case "noop", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	switch c.Events.Provider {
	case "noop", "pubsub":
	default:
		return fmt.Errorf("unknown events provider: %s", c.Events.Provider)
	}
	return nil
}

// HTTPTimeout converts the timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffBase converts the base backoff config into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond
}
