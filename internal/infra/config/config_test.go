package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Manifest: ManifestConfig{BaseURL: "https://manifest.example.com", TimeoutSec: 10},
		Cache:    CacheConfig{Redis: RedisConfig{TTLSec: 300}},
		Playback: PlaybackConfig{CapSeconds: 40, PollIntervalMs: 250},
		Output:   OutputConfig{Type: "virtual"},
		Log:      LogConfig{Level: "info", Output: "stdout", MaxSizeMB: 100},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing manifest base url",
			modify:  func(c *Config) { c.Manifest.BaseURL = "" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "malformed manifest base url",
			modify:  func(c *Config) { c.Manifest.BaseURL = "not a url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "zero cap",
			modify:  func(c *Config) { c.Playback.CapSeconds = 0 },
			wantErr: true,
			errMsg:  "CapSeconds",
		},
		{
			name:    "negative poll interval",
			modify:  func(c *Config) { c.Playback.PollIntervalMs = -1 },
			wantErr: true,
			errMsg:  "PollIntervalMs",
		},
		{
			name:    "unknown output type",
			modify:  func(c *Config) { c.Output.Type = "cassette" },
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name:    "redis db out of range",
			modify:  func(c *Config) { c.Cache.Redis.DB = 16 },
			wantErr: true,
			errMsg:  "DB",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errMsg:  "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  addr: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://album-backend-kmuo.onrender.com", cfg.Manifest.BaseURL)
	assert.Equal(t, 40*time.Second, cfg.Cap())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.ManifestTimeout())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout())
	assert.Equal(t, "virtual", cfg.Output.Type)
	assert.False(t, cfg.CacheEnabled())
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
server:
  addr: ":7000"
  api_token: "secret"
  hooks:
    on_started:
      - "echo started"
manifest:
  base_url: "https://manifest.example.com"
  timeout_sec: 3
cache:
  redis:
    addr: "localhost:6379"
    db: 2
    ttl_sec: 60
playback:
  cap_seconds: 30
  poll_interval_ms: 100
output:
  type: virtual
  settings:
    progress_interval_ms: 50
    block_autoplay: true
log:
  level: debug
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Server.APIToken)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.Empty(t, cfg.Server.Hooks.OnStopped)
	assert.Equal(t, 3*time.Second, cfg.ManifestTimeout())
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.Cap())
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 50, cfg.Output.Settings["progress_interval_ms"])
	assert.Equal(t, true, cfg.Output.Settings["block_autoplay"])
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("playback: [1, 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	_, err = Parse([]byte("playback:\n  cap_seconds: -5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  api_token: from-file\n"), 0o600))

	t.Setenv("PREVIEWBOX_MANIFEST_BASE_URL", "https://env.example.com")
	t.Setenv("PREVIEWBOX_API_TOKEN", "from-env")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Manifest.BaseURL)
	assert.Equal(t, "from-env", cfg.Server.APIToken)
	assert.Equal(t, "hunter2", cfg.Cache.Redis.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 40, cfg.Playback.CapSeconds)
}
