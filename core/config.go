package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for cacheflight.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Configuration file (YAML or JSON)
//  3. Environment variables
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithConfigFile("cacheflight.yaml"),
//	    WithRedisURL("redis://localhost:6379"),
//	    WithCacheName("orders"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Recorder  RecorderConfig  `yaml:"recorder" json:"recorder"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`

	configFile string
}

// RedisConfig describes the connection to the remote cache server.
type RedisConfig struct {
	URL          string        `yaml:"url" json:"url" env:"REDIS_URL"`
	DB           int           `yaml:"db" json:"db" env:"CACHEFLIGHT_REDIS_DB"`
	ClusterName  string        `yaml:"cluster_name" json:"cluster_name" env:"CACHEFLIGHT_CLUSTER_NAME"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
}

// CacheConfig describes the named cache exposed by the client.
type CacheConfig struct {
	Name            string        `yaml:"name" json:"name" env:"CACHEFLIGHT_CACHE_NAME"`
	KeyPrefix       string        `yaml:"key_prefix" json:"key_prefix"`
	DefaultLifespan time.Duration `yaml:"default_lifespan" json:"default_lifespan"`
	DefaultMaxIdle  time.Duration `yaml:"default_max_idle" json:"default_max_idle"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
}

// RecorderConfig controls the operation telemetry recorder.
//
// Enabled is resolved once when the cache is wrapped: false installs the raw
// client with no wrapper at all. The per-event switches can still be flipped
// at runtime through telemetry.Settings.
type RecorderConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled" env:"CACHEFLIGHT_RECORDER_ENABLED"`
	StartEnabled    bool          `yaml:"start_enabled" json:"start_enabled"`
	PeriodEnabled   bool          `yaml:"period_enabled" json:"period_enabled"`
	EndEnabled      bool          `yaml:"end_enabled" json:"end_enabled"`
	PeriodThreshold time.Duration `yaml:"period_threshold" json:"period_threshold"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

// CircuitBreakerConfig protects the caller from a failing telemetry sink.
type CircuitBreakerConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	RecoveryTime time.Duration `yaml:"recovery_time" json:"recovery_time"`
	HalfOpenMax  int           `yaml:"half_open_max" json:"half_open_max"`
}

// TelemetryConfig selects how events, metrics and spans leave the process.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" json:"service_name" env:"OTEL_SERVICE_NAME"`
	// Exporter is one of "stdout", "otlp" or "none".
	Exporter string `yaml:"exporter" json:"exporter" env:"CACHEFLIGHT_EXPORTER"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
	// Sinks lists the event sinks to install: "log", "metric", "span", "logger".
	Sinks []string `yaml:"sinks" json:"sinks" env:"CACHEFLIGHT_SINKS"`
}

// LoggingConfig configures the ZapLogger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" env:"CACHEFLIGHT_LOG_LEVEL"`
	Format      string `yaml:"format" json:"format" env:"CACHEFLIGHT_LOG_FORMAT"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	OTelBridge  bool   `yaml:"otel_bridge" json:"otel_bridge"`
}

// Option configures a Config.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			URL:          "redis://localhost:6379",
			DB:           RedisDBCache,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		},
		Cache: CacheConfig{
			Name:       "default",
			KeyPrefix:  DefaultKeyPrefix,
			MaxRetries: 16,
		},
		Recorder: RecorderConfig{
			Enabled:       true,
			StartEnabled:  true,
			PeriodEnabled: true,
			EndEnabled:    true,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxFailures:  10,
				RecoveryTime: 30 * time.Second,
				HalfOpenMax:  5,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "cacheflight",
			Exporter:    "none",
			Insecure:    true,
			Sinks:       []string{"log", "metric"},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "cacheflight",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults and files but are
// overridden by functional options.
//
// Variable naming convention:
//   - Module-specific: CACHEFLIGHT_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT
//
// Returns an error if environment variables contain invalid values.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("CACHEFLIGHT_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return &FrameworkError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid CACHEFLIGHT_REDIS_DB %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("CACHEFLIGHT_CLUSTER_NAME"); v != "" {
		c.Redis.ClusterName = v
	}
	if v := os.Getenv("CACHEFLIGHT_CACHE_NAME"); v != "" {
		c.Cache.Name = v
	}
	if v := os.Getenv("CACHEFLIGHT_RECORDER_ENABLED"); v != "" {
		c.Recorder.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHEFLIGHT_PERIOD_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &FrameworkError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid CACHEFLIGHT_PERIOD_THRESHOLD %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Recorder.PeriodThreshold = d
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("CACHEFLIGHT_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("CACHEFLIGHT_SINKS"); v != "" {
		c.Telemetry.Sinks = parseStringList(v)
	}
	if v := os.Getenv("CACHEFLIGHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CACHEFLIGHT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields absent
// from the file keep their current values.
//
// Example cacheflight.yaml:
//
//	redis:
//	  url: redis://localhost:6379
//	  cluster_name: cluster1
//	cache:
//	  name: orders
//	recorder:
//	  enabled: true
//	  period_threshold: 5ms
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// YAML is a superset of JSON, one decoder serves both extensions.
	if err := yaml.Unmarshal(data, c); err != nil {
		return &FrameworkError{
			Op:      "Config.LoadFromFile",
			Kind:    "config",
			ID:      cleanPath,
			Message: "failed to parse config file",
			Err:     fmt.Errorf("%w: %v", ErrInvalidConfiguration, err),
		}
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Redis URL is required
//   - Cache name is required
//   - Exporter must be stdout, otlp or none; otlp requires an endpoint
//   - Sinks must be log, metric, span or logger
//   - Period threshold must not be negative
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required",
			Err:     ErrMissingConfiguration,
		}
	}
	if c.Redis.DB < 0 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid redis db: %d", c.Redis.DB),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.Cache.Name == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "cache name is required",
			Err:     ErrMissingConfiguration,
		}
	}
	switch c.Telemetry.Exporter {
	case "stdout", "none", "":
	case "otlp":
		if c.Telemetry.Endpoint == "" {
			return &FrameworkError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "telemetry endpoint is required for the otlp exporter",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown exporter %q", c.Telemetry.Exporter),
			Err:     ErrInvalidConfiguration,
		}
	}
	for _, sink := range c.Telemetry.Sinks {
		switch sink {
		case "log", "metric", "span", "logger":
		default:
			return &FrameworkError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unknown sink %q", sink),
				Err:     ErrInvalidConfiguration,
			}
		}
	}
	if c.Recorder.PeriodThreshold < 0 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid period threshold: %s", c.Recorder.PeriodThreshold),
			Err:     ErrInvalidConfiguration,
		}
	}
	return nil
}

// ConfigFile returns the file applied through WithConfigFile, if any.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithConfigFile records a configuration file. NewConfig loads it before
// environment variables are applied.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		c.configFile = path
		return nil
	}
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		return nil
	}
}

// WithClusterName sets the cluster name reported on events.
func WithClusterName(name string) Option {
	return func(c *Config) error {
		c.Redis.ClusterName = name
		return nil
	}
}

// WithCacheName sets the cache name.
func WithCacheName(name string) Option {
	return func(c *Config) error {
		c.Cache.Name = name
		return nil
	}
}

// WithRecorder enables or disables installation of the recorder wrapper.
func WithRecorder(enabled bool) Option {
	return func(c *Config) error {
		c.Recorder.Enabled = enabled
		return nil
	}
}

// WithPeriodThreshold sets the minimum duration of committed Period events.
func WithPeriodThreshold(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return &FrameworkError{
				Op:      "WithPeriodThreshold",
				Kind:    "config",
				Message: fmt.Sprintf("invalid period threshold: %s", d),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Recorder.PeriodThreshold = d
		return nil
	}
}

// WithExporter selects the telemetry exporter and its endpoint.
func WithExporter(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Exporter = exporter
		if endpoint != "" {
			c.Telemetry.Endpoint = endpoint
		}
		return nil
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// NewConfig creates a configuration from defaults, an optional file, the
// environment and the supplied options, then validates it.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	// The file option has to be known before env vars are applied, so
	// options are evaluated twice: once to discover the file, once to win.
	probe := DefaultConfig()
	for _, opt := range opts {
		if err := opt(probe); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if probe.configFile != "" {
		if err := cfg.LoadFromFile(probe.configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
