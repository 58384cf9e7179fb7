package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the ambient logger. Grounded on
// core/config.go's LoggingConfig.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"REGISTRY_LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"REGISTRY_LOG_FORMAT" default:"json"`
	Output string `json:"output" yaml:"output" env:"REGISTRY_LOG_OUTPUT" default:"stdout"`
}

// Config holds process-wide configuration for the registry engine and
// its health supervisor, following the same three-layer priority
// (defaults → environment → functional options) and hand-rolled
// os.Getenv parsing as core/config.go — no reflection, no third-party
// env library.
type Config struct {
	RegistrationKey string `json:"registration_key" yaml:"registration_key"`
	AdminKey        string `json:"admin_key" yaml:"admin_key"`
	Namespace       string `json:"namespace" yaml:"namespace"`

	Health  HealthSupervisorConfig `json:"health" yaml:"health"`
	Logging LoggingConfig          `json:"logging" yaml:"logging"`
}

// DefaultConfig returns the configuration's default values. RegistrationKey
// is intentionally left empty — it has no sane default; its absence is a
// fatal configuration error.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "default",
		Health:    DefaultHealthSupervisorConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ConfigOption mutates a Config; applied after environment loading so
// functional options take precedence over it.
type ConfigOption func(*Config)

// WithRegistrationKey sets the shared registration secret directly,
// bypassing the environment.
func WithRegistrationKey(key string) ConfigOption {
	return func(c *Config) { c.RegistrationKey = key }
}

// WithAdminKey sets the admin key directly.
func WithAdminKey(key string) ConfigOption {
	return func(c *Config) { c.AdminKey = key }
}

// WithHealthSupervisorConfig overrides the health supervisor parameters.
func WithHealthSupervisorConfig(h HealthSupervisorConfig) ConfigOption {
	return func(c *Config) { c.Health = h }
}

// NewConfig builds a Config the same way core/config.go's NewConfig does:
// defaults, then environment variables, then functional options, then
// validation.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv reads process environment variables: SERVICE_REGISTRATION_KEY,
// ADMIN_API_KEY, plus the health-supervisor tuning knobs.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("SERVICE_REGISTRATION_KEY"); v != "" {
		c.RegistrationKey = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.AdminKey = v
	}
	if v := os.Getenv("REGISTRY_NAMESPACE"); v != "" {
		c.Namespace = v
	}

	if v := os.Getenv("REGISTRY_HEALTH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REGISTRY_HEALTH_ENABLED: %w", ErrInvalidConfiguration)
		}
		c.Health.Enabled = b
	}
	if v := os.Getenv("REGISTRY_HEALTH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REGISTRY_HEALTH_INTERVAL: %w", ErrInvalidConfiguration)
		}
		c.Health.Interval = d
	}
	if v := os.Getenv("REGISTRY_HEALTH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REGISTRY_HEALTH_TTL: %w", ErrInvalidConfiguration)
		}
		c.Health.TTL = d
	}
	if v := os.Getenv("REGISTRY_HEALTH_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REGISTRY_HEALTH_BATCH_SIZE: %w", ErrInvalidConfiguration)
		}
		c.Health.BatchSize = n
	}
	if v := os.Getenv("REGISTRY_HEALTH_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REGISTRY_HEALTH_MAX_CONCURRENT: %w", ErrInvalidConfiguration)
		}
		c.Health.MaxConcurrent = n
	}
	if v := os.Getenv("REGISTRY_HEALTH_SCHEME"); v != "" {
		c.Health.Scheme = v
	}

	if v := os.Getenv("REGISTRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REGISTRY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("REGISTRY_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file, overriding
// whatever environment values were already loaded (file settings are
// still overridden by functional options applied after this call).
//
// core/config.go stubs the YAML branch with a comment ("For YAML support,
// we'd need to import gopkg.in/yaml.v3") and returns an error instead of
// implementing it. This completes that stub directly — gopkg.in/yaml.v3
// is already a dependency, so there's no reason to leave it unimplemented.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path is cleaned above
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks the final configuration and rejects anything that would
// leave the engine or supervisor unable to start.
func (c *Config) Validate() error {
	if c.RegistrationKey == "" {
		return ErrMissingConfiguration
	}
	if c.Health.BatchSize <= 0 {
		return fmt.Errorf("health.batchSize must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Health.MaxConcurrent <= 0 {
		return fmt.Errorf("health.maxConcurrent must be positive: %w", ErrInvalidConfiguration)
	}
	return nil
}
