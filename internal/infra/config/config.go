// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Manifest ManifestConfig `yaml:"manifest"`
	Cache    CacheConfig    `yaml:"cache"`
	Playback PlaybackConfig `yaml:"playback"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr                  string      `yaml:"addr" default:":8080"`
	APIToken              string      `yaml:"api_token"`
	SessionIdleTimeoutSec int         `yaml:"session_idle_timeout_sec" default:"1800" validate:"gte=0"`
	Hooks                 HooksConfig `yaml:"hooks"`
}

// HooksConfig represents shell commands run around the server lifecycle.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ManifestConfig represents the published manifest endpoint.
type ManifestConfig struct {
	BaseURL    string `yaml:"base_url" default:"https://album-backend-kmuo.onrender.com" validate:"required,url"`
	TimeoutSec int    `yaml:"timeout_sec" default:"10" validate:"gt=0,lte=120"`
}

// CacheConfig represents manifest cache configuration.
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig represents Redis connection settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0,lte=15"`
	TTLSec   int    `yaml:"ttl_sec" default:"300" validate:"gt=0"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	CapSeconds     int `yaml:"cap_seconds" default:"40" validate:"gt=0,lte=600"`
	PollIntervalMs int `yaml:"poll_interval_ms" default:"250" validate:"gte=0,lte=5000"`
}

// OutputConfig represents the media output used by sessions.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"virtual" validate:"oneof=virtual speaker"`
	Settings map[string]any `yaml:"settings"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output     string `yaml:"output" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100" validate:"gt=0"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.overrideFromEnv()
	// defaults.Set only fails on malformed tags
	_ = defaults.Set(&cfg)
	return &cfg
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PREVIEWBOX_MANIFEST_BASE_URL"); v != "" {
		c.Manifest.BaseURL = v
	}
	if v := os.Getenv("PREVIEWBOX_API_TOKEN"); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// Cap returns the preview limit.
func (c *Config) Cap() time.Duration {
	return time.Duration(c.Playback.CapSeconds) * time.Second
}

// PollInterval returns the engine position poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Playback.PollIntervalMs) * time.Millisecond
}

// ManifestTimeout returns the manifest request timeout.
func (c *Config) ManifestTimeout() time.Duration {
	return time.Duration(c.Manifest.TimeoutSec) * time.Second
}

// CacheTTL returns how long a cached manifest stays valid.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.Redis.TTLSec) * time.Second
}

// SessionIdleTimeout returns how long an unused session stays open (0 = forever).
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Server.SessionIdleTimeoutSec) * time.Second
}

// CacheEnabled reports whether the Redis manifest cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Redis.Addr != ""
}
