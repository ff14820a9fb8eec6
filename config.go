package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for nimbuskv-server.
type Config struct {
	// Server settings
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Resource limits
	MaxMemory      string        `mapstructure:"max_memory"`
	MaxConnections int           `mapstructure:"max_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`

	// Event loop pacing
	TickSleep          time.Duration `mapstructure:"tick_sleep"`
	FastExpiryInterval time.Duration `mapstructure:"fast_expiry_interval"`
	SlowExpiryInterval time.Duration `mapstructure:"slow_expiry_interval"`

	// Active-expiration sampler
	SampleSize       int           `mapstructure:"sample_size"`
	FastExpireBudget time.Duration `mapstructure:"fast_expire_budget"`
	SlowExpireBudget time.Duration `mapstructure:"slow_expire_budget"`
	HitRateThreshold float64       `mapstructure:"hit_rate_threshold"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Advanced
	TCPKeepAlive bool `mapstructure:"tcp_keepalive"`
}

// DefaultConfig returns a Config with default values, matching the
// original reference server's settings.rs constants (127.0.0.1:6379,
// unbounded max_memory, 10000 max_connections) promoted into a config
// layer the way the teacher's DefaultConfig does.
func DefaultConfig() *Config {
	return &Config{
		Host:               "127.0.0.1",
		Port:               6379,
		MaxMemory:          "0",
		MaxConnections:     10000,
		IdleTimeout:        0,
		TickSleep:          1 * time.Millisecond,
		FastExpiryInterval: 10 * time.Millisecond,
		SlowExpiryInterval: 200 * time.Millisecond,
		SampleSize:         20,
		FastExpireBudget:   1 * time.Millisecond,
		SlowExpireBudget:   25 * time.Millisecond,
		HitRateThreshold:   0.25,
		LogLevel:           "info",
		LogFormat:          "text",
		TCPKeepAlive:       true,
	}
}

// LoadConfig loads configuration from command line flags, environment
// variables, and an optional config file, mirroring the teacher's viper
// wiring. Flags take precedence over environment variables, which take
// precedence over the config file, which takes precedence over the defaults.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("nimbuskv")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/nimbuskv/")
	viper.AddConfigPath("$HOME/.nimbuskv")

	viper.SetEnvPrefix("NIMBUSKV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("host", config.Host)
	viper.SetDefault("port", config.Port)
	viper.SetDefault("max_memory", config.MaxMemory)
	viper.SetDefault("max_connections", config.MaxConnections)
	viper.SetDefault("idle_timeout", config.IdleTimeout)
	viper.SetDefault("tick_sleep", config.TickSleep)
	viper.SetDefault("fast_expiry_interval", config.FastExpiryInterval)
	viper.SetDefault("slow_expiry_interval", config.SlowExpiryInterval)
	viper.SetDefault("sample_size", config.SampleSize)
	viper.SetDefault("fast_expire_budget", config.FastExpireBudget)
	viper.SetDefault("slow_expire_budget", config.SlowExpireBudget)
	viper.SetDefault("hit_rate_threshold", config.HitRateThreshold)
	viper.SetDefault("log_level", config.LogLevel)
	viper.SetDefault("log_format", config.LogFormat)
	viper.SetDefault("tcp_keepalive", config.TCPKeepAlive)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1")
	}
	if c.SampleSize < 1 {
		return fmt.Errorf("sample_size must be at least 1")
	}
	if c.HitRateThreshold < 0 || c.HitRateThreshold > 1 {
		return fmt.Errorf("hit_rate_threshold must be between 0 and 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseMemorySize converts the human-readable MaxMemory string ("0",
// "512MB", "2GB") to a byte count. "0" means unlimited, matching the
// original's max_memory=0 sentinel.
func (c *Config) ParseMemorySize() (int64, error) {
	size := strings.ToUpper(strings.TrimSpace(c.MaxMemory))

	if size == "" || size == "0" {
		return 0, nil
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(size, "KB"):
		multiplier = 1024
		size = strings.TrimSuffix(size, "KB")
	case strings.HasSuffix(size, "MB"):
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(size, "MB")
	case strings.HasSuffix(size, "GB"):
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(size, "GB")
	}

	value, err := strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size: %s", c.MaxMemory)
	}

	return value * multiplier, nil
}

// SamplerConfig extracts the active-expiration sampler tunables.
func (c *Config) SamplerConfig() SamplerConfig {
	return SamplerConfig{
		SampleSize:   c.SampleSize,
		FastBudget:   c.FastExpireBudget,
		SlowBudget:   c.SlowExpireBudget,
		HitThreshold: c.HitRateThreshold,
	}
}

// String returns a log-friendly summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf("nimbuskv config: %s:%d, max_memory=%s, max_connections=%d, log_level=%s",
		c.Host, c.Port, c.MaxMemory, c.MaxConnections, c.LogLevel)
}
