package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeoutSeconds)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 3, cfg.Runner.MaxAttempts)
	assert.Equal(t, 20, cfg.Runner.Workers)
	assert.Equal(t, "http://localhost:8000", cfg.Client.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.False(t, strings.HasPrefix(cfg.Store.DataDir, "~"), "home must be expanded")
	assert.Empty(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("SKYBIT_TEST_GATEWAY_KEY", "gw-secret-key-123456")

	data := []byte(`
[server]
addr = "127.0.0.1:9100"

[store]
data_dir = "/var/lib/skybit"

[scheduler]
timezone = "Europe/Berlin"

[runner]
gateway_url = "${SKYBIT_TEST_GATEWAY_URL:http://agents.local:9000/run}"
api_key = "${SKYBIT_TEST_GATEWAY_KEY}"
workers = 4

[logging]
level = "debug"
format = "text"
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/skybit", cfg.Store.DataDir)
	assert.Equal(t, "Europe/Berlin", cfg.Scheduler.Timezone)
	assert.Equal(t, "http://agents.local:9000/run", cfg.Runner.GatewayURL)
	assert.Equal(t, "gw-secret-key-123456", cfg.Runner.APIKey)
	assert.Equal(t, 4, cfg.Runner.Workers)
	assert.Equal(t, 100, cfg.Runner.QueueSize, "unset values get defaults")
	assert.Equal(t, 30*time.Second, cfg.Runner.BreakerCooldown())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, cfg.Validate())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("[server\naddr ="))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9999\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, field: "scheduler.timezone"},
		{name: "bad gateway url", mutate: func(c *Config) { c.Runner.GatewayURL = "ftp://agents" }, field: "runner.gateway_url"},
		{name: "short api key", mutate: func(c *Config) { c.Runner.APIKey = "abc" }, field: "runner.api_key"},
		{name: "too many attempts", mutate: func(c *Config) { c.Runner.MaxAttempts = 50 }, field: "runner.max_attempts"},
		{name: "no workers", mutate: func(c *Config) { c.Runner.Workers = -1 }, field: "runner.workers"},
		{name: "negative breaker threshold", mutate: func(c *Config) { c.Runner.BreakerThreshold = -1 }, field: "runner.breaker_threshold"},
		{name: "bad client url", mutate: func(c *Config) { c.Client.BaseURL = "localhost" }, field: "client.base_url"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, field: "logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, field: "logging.format"},
		{name: "path traversal", mutate: func(c *Config) { c.Store.DataDir = "/srv/../etc" }, field: "store.data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.field)
		})
	}
}

func TestMasked(t *testing.T) {
	cfg := Default()
	cfg.Runner.APIKey = "sk-abcdefghijklmnop"

	masked := cfg.Masked()
	assert.Equal(t, "sk-a***********mnop", masked.Runner.APIKey)
	assert.Equal(t, "sk-abcdefghijklmnop", cfg.Runner.APIKey, "original must be untouched")
}

func TestValidate_APIKeyNotLeaked(t *testing.T) {
	cfg := Default()
	cfg.Runner.APIKey = "short12"

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.NotContains(t, errs[0].Error(), "short12")
}
