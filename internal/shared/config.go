package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
	Backend     BackendConfig     `toml:"backend"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Lyrics      LyricsConfig      `toml:"lyrics"`
	Sync        SyncConfig        `toml:"sync"`
	Redis       RedisConfig       `toml:"redis"`
	Sentry      SentryConfig      `toml:"sentry"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials used for playlist imports.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url,omitempty"` // Overrides the accounts service token endpoint
}

// YouTubeConfig points at the YouTube Music catalog proxy.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
	AuthFile string `toml:"auth_file"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls log level and optional rotating file output.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// BackendConfig contains the stream-resolution backend settings.
type BackendConfig struct {
	StreamURL      string   `toml:"stream_url"`
	RequestTimeout Duration `toml:"request_timeout"`
	PreloadTimeout Duration `toml:"preload_timeout"`
}

// PipelineConfig sizes the resolution worker pool and the preload cache.
type PipelineConfig struct {
	Workers       int      `toml:"workers"`
	PrefetchCount int      `toml:"prefetch_count"`
	CacheTTL      Duration `toml:"cache_ttl"`
}

// LyricsConfig selects lyric sources and their order of preference.
type LyricsConfig struct {
	PreferLocal bool   `toml:"prefer_local"`
	Store       string `toml:"store"` // sqlite or redis
	YouTube     bool   `toml:"youtube"`
	Subtitles   bool   `toml:"subtitles"`
	LrcLib      bool   `toml:"lrclib"`
	KuGou       bool   `toml:"kugou"`
}

// SyncConfig tunes the cross-catalog sync worker.
type SyncConfig struct {
	BatchSize         int      `toml:"batch_size"`
	RateLimit         Duration `toml:"rate_limit"`
	DurationTolerance int      `toml:"duration_tolerance"`
}

// RedisConfig contains Redis connection settings for the optional lyrics store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `toml:"dsn"`
	Environment string `toml:"environment"`
}

// Duration wraps [time.Duration] for TOML strings such as "500ms" or "6h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Lyrics.Store {
	case "", "sqlite", "redis":
	default:
		return fmt.Errorf("%w: lyrics.store must be sqlite or redis, got %q", ErrInvalidConfig, c.Lyrics.Store)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: pipeline.workers must not be negative", ErrInvalidConfig)
	}
	if c.Sync.BatchSize < 0 {
		return fmt.Errorf("%w: sync.batch_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
