// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.Interval)
	assert.Equal(t, 50, cfg.History.MaxSize)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins: ["http://localhost:3000"]

engine:
  base_url: "http://engine:8000"
  api_key: "k"
  breaker_threshold: 3

compiler:
  default_provider: gemini_textgen
  default_temperature: 0.2
  models:
    my-model: bedrock_textgen
  personalities:
    pirate: "Talk like a pirate."

history:
  max_size: 20
  drafts_enabled: true
  draft_ttl: 1h

poller:
  interval: 250ms
  terminal_statuses: [completed, failed]
  max_polls: 120

redis:
  addr: "redis:6379"
  key_prefix: "studio:"

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSAllowedOrigins)
	// 未在文件中出现的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	assert.Equal(t, "http://engine:8000", cfg.Engine.BaseURL)
	assert.Equal(t, 3, cfg.Engine.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)

	assert.Equal(t, "gemini_textgen", cfg.Compiler.DefaultProvider)
	assert.Equal(t, 0.2, cfg.Compiler.DefaultTemperature)
	assert.Equal(t, "bedrock_textgen", cfg.Compiler.Models["my-model"])
	assert.Equal(t, "Talk like a pirate.", cfg.Compiler.Personalities["pirate"])

	assert.Equal(t, 20, cfg.History.MaxSize)
	assert.True(t, cfg.History.DraftsEnabled)
	assert.Equal(t, time.Hour, cfg.History.DraftTTL)

	assert.Equal(t, 250*time.Millisecond, cfg.Poller.Interval)
	assert.Equal(t, []string{"completed", "failed"}, cfg.Poller.TerminalStatuses)
	assert.Equal(t, 120, cfg.Poller.MaxPolls)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "studio:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "console", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 8888\n"), 0o644))

	t.Setenv("AGENTSTUDIO_SERVER_HTTP_PORT", "7070")
	t.Setenv("AGENTSTUDIO_ENGINE_BASE_URL", "http://other:9000")
	t.Setenv("AGENTSTUDIO_ENGINE_RATE_LIMIT", "2.5")
	t.Setenv("AGENTSTUDIO_POLLER_INTERVAL", "1s")
	t.Setenv("AGENTSTUDIO_POLLER_TERMINAL_STATUSES", "done, failed ,")
	t.Setenv("AGENTSTUDIO_HISTORY_DRAFTS_ENABLED", "true")
	t.Setenv("AGENTSTUDIO_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "http://other:9000", cfg.Engine.BaseURL)
	assert.Equal(t, 2.5, cfg.Engine.RateLimit)
	assert.Equal(t, time.Second, cfg.Poller.Interval)
	assert.Equal(t, []string{"done", "failed"}, cfg.Poller.TerminalStatuses)
	assert.True(t, cfg.History.DraftsEnabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("STUDIO_LOG_LEVEL", "warn")
	cfg, err := NewLoader().WithEnvPrefix("STUDIO").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTSTUDIO_POLLER_INTERVAL", "soon")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTSTUDIO_POLLER_INTERVAL")
}

func TestLoader_Validators(t *testing.T) {
	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	t.Setenv("AGENTSTUDIO_HISTORY_MAX_SIZE", "0")
	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history max_size")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 70000 }, "invalid HTTP port"},
		{"port clash", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "metrics port must differ"},
		{"no engine", func(c *Config) { c.Engine.BaseURL = " " }, "engine base_url"},
		{"temperature", func(c *Config) { c.Compiler.DefaultTemperature = 3 }, "temperature"},
		{"provider", func(c *Config) { c.Compiler.DefaultProvider = "" }, "default_provider"},
		{"interval", func(c *Config) { c.Poller.Interval = 0 }, "poller interval"},
		{"max polls", func(c *Config) { c.Poller.MaxPolls = -1 }, "max_polls"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.History.MaxSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "history max_size")
}

func TestMustLoad(t *testing.T) {
	assert.NotPanics(t, func() { MustLoad("") })

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("::"), 0o644))
	assert.Panics(t, func() { MustLoad(path) })
}
