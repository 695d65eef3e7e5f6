package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muaviaUsmani/tempo/internal/logger"
	"github.com/muaviaUsmani/tempo/pkg/retry"
)

// Config holds all configuration for tempo processes
type Config struct {
	// RedisURL is the connection URL for Redis
	RedisURL string `yaml:"redis_url"`
	// KeyPrefix namespaces every Redis key tempo writes
	KeyPrefix string `yaml:"key_prefix"`
	// PlannerInterval is how often the planner loop pops due arms
	PlannerInterval time.Duration `yaml:"planner_interval"`
	// PlannerBatchSize caps the arms popped per tick
	PlannerBatchSize int `yaml:"planner_batch_size"`
	// LockTTL bounds how long a per-owner reservation lock is held
	LockTTL time.Duration `yaml:"lock_ttl"`
	// LockWait is how long ReserveWindow waits for a busy owner lock
	LockWait time.Duration `yaml:"lock_wait"`
	// OutcomeDedupeTTL is how long a delivered outcome ID is remembered
	OutcomeDedupeTTL time.Duration `yaml:"outcome_dedupe_ttl"`
	// DispatchList is the Redis list due arms are pushed to for the timer runtime
	DispatchList string `yaml:"dispatch_list"`
	// DefaultTimezone is used for tasks registered without one
	DefaultTimezone string `yaml:"default_timezone"`
	// RejectConflicts makes window reservation fail on overlap instead of flagging it
	RejectConflicts bool `yaml:"reject_conflicts"`
	// StrictDependencies rejects dependency edges that would close a cycle
	StrictDependencies bool `yaml:"strict_dependencies"`
	// Retry is the policy applied to tasks that do not carry one
	Retry RetryConfig `yaml:"retry"`
	// Logging configuration
	Logging *logger.Config `yaml:"logging"`
}

// RetryConfig is the file/env form of retry.Policy
type RetryConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
}

// Policy converts the config into a retry.Policy
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		Enabled:           r.Enabled,
		MaxRetries:        r.MaxRetries,
		RetryDelay:        r.RetryDelay,
		BackoffMultiplier: r.BackoffMultiplier,
		MaxRetryDelay:     r.MaxRetryDelay,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		RedisURL:         "redis://localhost:6379",
		KeyPrefix:        "tempo",
		PlannerInterval:  1 * time.Second,
		PlannerBatchSize: 100,
		LockTTL:          5 * time.Second,
		LockWait:         2 * time.Second,
		OutcomeDedupeTTL: 24 * time.Hour,
		DispatchList:     "tempo:dispatch",
		DefaultTimezone:  "UTC",
		Retry: RetryConfig{
			Enabled:           p.Enabled,
			MaxRetries:        p.MaxRetries,
			RetryDelay:        p.RetryDelay,
			BackoffMultiplier: p.BackoffMultiplier,
			MaxRetryDelay:     p.MaxRetryDelay,
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by TEMPO_CONFIG (if set), then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("TEMPO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
	return nil
}

func (c *Config) applyEnv() {
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.KeyPrefix = getEnv("TEMPO_KEY_PREFIX", c.KeyPrefix)
	c.PlannerInterval = getEnvAsDuration("PLANNER_INTERVAL", c.PlannerInterval)
	c.PlannerBatchSize = getEnvAsInt("PLANNER_BATCH_SIZE", c.PlannerBatchSize)
	c.LockTTL = getEnvAsDuration("LOCK_TTL", c.LockTTL)
	c.LockWait = getEnvAsDuration("LOCK_WAIT", c.LockWait)
	c.OutcomeDedupeTTL = getEnvAsDuration("OUTCOME_DEDUPE_TTL", c.OutcomeDedupeTTL)
	c.DispatchList = getEnv("DISPATCH_LIST", c.DispatchList)
	c.DefaultTimezone = getEnv("DEFAULT_TIMEZONE", c.DefaultTimezone)
	c.RejectConflicts = getEnvAsBool("REJECT_CONFLICTS", c.RejectConflicts)
	c.StrictDependencies = getEnvAsBool("STRICT_DEPENDENCIES", c.StrictDependencies)

	c.Retry.Enabled = getEnvAsBool("RETRY_ENABLED", c.Retry.Enabled)
	c.Retry.MaxRetries = getEnvAsInt("MAX_RETRIES", c.Retry.MaxRetries)
	c.Retry.RetryDelay = getEnvAsDuration("RETRY_DELAY", c.Retry.RetryDelay)
	c.Retry.BackoffMultiplier = getEnvAsFloat("RETRY_BACKOFF_MULTIPLIER", c.Retry.BackoffMultiplier)
	c.Retry.MaxRetryDelay = getEnvAsDuration("MAX_RETRY_DELAY", c.Retry.MaxRetryDelay)

	applyLoggingEnv(c.Logging)
}

// Validate checks required fields and the default retry policy
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL cannot be empty")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix cannot be empty")
	}
	if c.PlannerInterval <= 0 {
		return fmt.Errorf("PLANNER_INTERVAL must be positive")
	}
	if c.PlannerBatchSize < 1 {
		return fmt.Errorf("PLANNER_BATCH_SIZE must be at least 1")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.LockWait < 0 {
		return fmt.Errorf("LOCK_WAIT cannot be negative")
	}
	if c.OutcomeDedupeTTL <= 0 {
		return fmt.Errorf("OUTCOME_DEDUPE_TTL must be positive")
	}
	if c.DispatchList == "" {
		return fmt.Errorf("DISPATCH_LIST cannot be empty")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if err := c.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid default retry policy: %w", err)
	}
	if c.Logging == nil {
		return fmt.Errorf("logging config is missing")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	return nil
}

func applyLoggingEnv(cfg *logger.Config) {
	if cfg == nil {
		return
	}
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.Level(strings.ToLower(level))
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.Format(strings.ToLower(format))
	}

	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", cfg.Console.Enabled)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", cfg.Console.Color)

	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", cfg.File.Enabled)
	cfg.File.Path = getEnv("LOG_FILE_PATH", cfg.File.Path)
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", cfg.File.MaxSizeMB)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", cfg.File.MaxBackups)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", cfg.File.MaxAgeDays)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", cfg.File.Compress)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
