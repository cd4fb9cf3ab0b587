package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Listen      string            `yaml:"listen"`      // HTTP listen address.
	Database    DatabaseConfig    `yaml:"database"`    // Storage configuration.
	Admin       AdminConfig       `yaml:"admin"`       // Admin API gate.
	Entitlement EntitlementConfig `yaml:"entitlement"` // Signed grant tokens.
	Redis       RedisConfig       `yaml:"redis"`       // Optional redis for rate limiting.
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`  // Validation rate limiting.
	Logging     LoggingConfig     `yaml:"logging"`     // Log output configuration.
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// AdminConfig holds the admin API gate settings.
type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token. When empty,
	// every admin request is rejected.
	TokenHash string `yaml:"token_hash"`
}

// EntitlementConfig holds signed grant token settings.
type EntitlementConfig struct {
	// Secret signs entitlement tokens. When empty, no tokens are issued.
	Secret string `yaml:"secret"`
	// TTLHours caps entitlement token lifetime.
	TTLHours int `yaml:"ttl_hours"`
}

// TTL returns the entitlement token lifetime cap.
func (c EntitlementConfig) TTL() time.Duration {
	hours := c.TTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// RedisConfig holds optional redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // host:port; empty disables redis features.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig controls validation endpoint rate limiting.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"` // Requests per client per minute; 0 uses the default.
}

// LoggingConfig controls log level and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`        // debug, info, warn, error.
	File       string `yaml:"file"`         // Log file path; empty logs to stderr.
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotate after this size.
	MaxBackups int    `yaml:"max_backups"`  // Rotated files to keep.
	MaxAgeDays int    `yaml:"max_age_days"` // Days to keep rotated files.
	Compress   bool   `yaml:"compress"`     // Gzip rotated files.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   ":8080",
		Database: DatabaseConfig{DSN: "licensegate.db"},
		Entitlement: EntitlementConfig{
			TTLHours: 24,
		},
		RateLimit: RateLimitConfig{PerMinute: 120},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Load reads and validates a YAML config file, applying defaults for
// unset fields. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errUnmarshal := yaml.Unmarshal(raw, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	if errValidate := cfg.validate(); errValidate != nil {
		return cfg, errValidate
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database dsn is required")
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("config: rate_limit.per_minute must be >= 0")
	}
	if c.Entitlement.TTLHours < 0 {
		return fmt.Errorf("config: entitlement.ttl_hours must be >= 0")
	}
	return nil
}
