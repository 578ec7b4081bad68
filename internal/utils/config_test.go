package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigFrom_Valid(t *testing.T) {
	p := writeConfig(t, `
carbone:
  endpoint_url: "https://render.example.test/render"
  api_version: "4"
  timeout: 30s
render:
  template_path: "templates/delivery.html"
  output_path: "out/delivery.pdf"
  convert_to: pdf
  data:
    collection_ref: PO-0047
    deliveries:
      - item: MAHOU/30L
        quantity_collected: 24
cache:
  render_cache_ttl: 10m
rate_limiter:
  interval: 1h
  user_limit: 20
auth:
  api_keys:
    local-dev: 5
`)
	cfg, err := LoadConfigFrom(p)
	require.NoError(t, err)

	assert.Equal(t, "https://render.example.test/render", cfg.Carbone.EndpointURL)
	assert.Equal(t, 30*time.Second, cfg.Carbone.Timeout)
	assert.Equal(t, "out/delivery.pdf", cfg.Render.OutputPath)
	assert.Equal(t, "PO-0047", cfg.Render.Data["collection_ref"])
	require.Len(t, cfg.Render.Data["deliveries"], 1)
	assert.Equal(t, 10*time.Minute, cfg.Cache.RenderCacheTTL)
	assert.Equal(t, 20, cfg.RateLimiter.UserLimit)
	assert.Equal(t, 5, cfg.Auth.APIKeys["local-dev"])

	// Untouched sections keep their defaults.
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, cfg, GetConfig())
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "https://render.carbone.io/render", cfg.Carbone.EndpointURL)
	assert.Equal(t, "output.pdf", cfg.Render.OutputPath)
	assert.Empty(t, cfg.Carbone.APIKey)
}

func TestLoadConfigFrom_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "malformed yaml", yml: "carbone: [\n"},
		{name: "bad endpoint", yml: "carbone:\n  endpoint_url: not a url\n"},
		{name: "negative timeout", yml: "carbone:\n  timeout: -1s\n"},
		{name: "bad convert_to", yml: "render:\n  convert_to: \"p/df\"\n"},
		{name: "unknown storage provider", yml: "storage:\n  provider: ftp\n"},
		{name: "s3 without bucket", yml: "storage:\n  provider: s3\n"},
		{name: "zero rate interval", yml: "rate_limiter:\n  interval: 0s\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFrom(writeConfig(t, tc.yml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, "render:\n  output_path: env.pdf\n")
	t.Setenv("CONFIG_PATH", p)

	assert.Equal(t, p, ConfigPath())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env.pdf", cfg.Render.OutputPath)
}

func TestConfigPath_Default(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yaml", ConfigPath())
}
