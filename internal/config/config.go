package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "./config.toml"

// Load reads a TOML file, applies defaults and expands environment
// references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes TOML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	expandEnvVars(cfg)
	return cfg
}

// Validate reports every configuration problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout_seconds must be >= 1"))
	}

	if c.Store.DataDir == "" {
		errs = append(errs, fmt.Errorf("store.data_dir is required"))
	} else if err := validatePath(c.Store.DataDir, "store.data_dir"); err != nil {
		errs = append(errs, err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid scheduler.timezone: %s", c.Scheduler.Timezone))
	}

	if c.Runner.GatewayURL != "" {
		if err := validateURL(c.Runner.GatewayURL, "runner.gateway_url"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Runner.APIKey != "" && len(c.Runner.APIKey) < 10 {
		errs = append(errs, formatValidationError("runner.api_key", "is too short (minimum 10 characters)", c.Runner.APIKey))
	}
	if c.Runner.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("runner.timeout_seconds must be >= 1"))
	}
	if c.Runner.MaxAttempts < 1 || c.Runner.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("runner.max_attempts must be between 1 and 10 (got %d)", c.Runner.MaxAttempts))
	}
	if c.Runner.Workers < 1 {
		errs = append(errs, fmt.Errorf("runner.workers must be >= 1"))
	}
	if c.Runner.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("runner.queue_size must be >= 1"))
	}
	if c.Runner.BreakerThreshold < 1 {
		errs = append(errs, fmt.Errorf("runner.breaker_threshold must be >= 1"))
	}
	if c.Runner.BreakerCooldownSeconds < 1 {
		errs = append(errs, fmt.Errorf("runner.breaker_cooldown_seconds must be >= 1"))
	}

	if err := validateURL(c.Client.BaseURL, "client.base_url"); err != nil {
		errs = append(errs, err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errs = append(errs, fmt.Errorf("logging.output is required"))
	}

	return errs
}

func validateURL(raw, fieldName string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", fieldName, raw)
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if strings.HasPrefix(path, "~") {
		return nil
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	if c.Store.DataDir == "" {
		c.Store.DataDir = "~/.skybit"
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}

	if c.Runner.TimeoutSeconds == 0 {
		c.Runner.TimeoutSeconds = 3600
	}
	if c.Runner.MaxAttempts == 0 {
		c.Runner.MaxAttempts = 3
	}
	if c.Runner.Workers == 0 {
		c.Runner.Workers = 20
	}
	if c.Runner.QueueSize == 0 {
		c.Runner.QueueSize = 100
	}
	if c.Runner.BreakerThreshold == 0 {
		c.Runner.BreakerThreshold = 5
	}
	if c.Runner.BreakerCooldownSeconds == 0 {
		c.Runner.BreakerCooldownSeconds = 30
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8000"
	}
	if c.Client.TimeoutSeconds == 0 {
		c.Client.TimeoutSeconds = 30
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

func expandEnvVars(c *Config) {
	c.Server.Addr = expandEnv(c.Server.Addr)
	c.Store.DataDir = expandHome(expandEnv(c.Store.DataDir))
	c.Runner.GatewayURL = expandEnv(c.Runner.GatewayURL)
	c.Runner.APIKey = expandEnv(c.Runner.APIKey)
	c.Client.BaseURL = expandEnv(c.Client.BaseURL)
	c.Logging.Output = expandHome(expandEnv(c.Logging.Output))
}

// expandEnv resolves a value of the form ${VAR} or ${VAR:default}.
// Other values are returned unchanged.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
