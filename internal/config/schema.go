// Package config loads and validates skybit configuration.
// Configuration lives in a TOML file; defaults are applied after decoding
// and string values may reference the environment.
//
// Configuration structure:
//   - [server]: Task store HTTP listener
//   - [store]: Task registry location
//   - [scheduler]: Scheduler timezone
//   - [runner]: Agent gateway and worker pool
//   - [client]: Task store URL used by the tasks commands
//   - [logging]: Logging level, format, and output
//
// Environment variables:
// Values can be written as ${VAR} or ${VAR:default}.
// For example: api_key = "${SKYBIT_GATEWAY_KEY}"
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Runner    RunnerConfig    `toml:"runner"`
	Client    ClientConfig    `toml:"client"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig configures the task store HTTP server.
type ServerConfig struct {
	Addr                   string `toml:"addr"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// StoreConfig configures the on-disk task registry.
type StoreConfig struct {
	DataDir string `toml:"data_dir"`
}

// SchedulerConfig configures the cron scheduler.
type SchedulerConfig struct {
	Timezone string `toml:"timezone"`
}

// RunnerConfig configures task execution.
type RunnerConfig struct {
	GatewayURL     string `toml:"gateway_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
	Workers        int    `toml:"workers"`
	QueueSize      int    `toml:"queue_size"`

	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

// ClientConfig configures the task store client.
type ClientConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Timeout returns the per-run timeout.
func (c RunnerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BreakerCooldown returns how long the gateway circuit stays open.
func (c RunnerConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// Timeout returns the per-request timeout.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
