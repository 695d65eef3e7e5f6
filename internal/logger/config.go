package logger

import (
	"fmt"
)

// Level is the minimum severity a logger emits
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// Format selects the console encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Source distinguishes decisions made by the engine from events reported by
// the external timer runtime
type Source string

const (
	SourceEngine  Source = "tempo_engine"
	SourceRuntime Source = "tempo_runtime"
)

// Component identifies which part of tempo produced an entry
type Component string

const (
	ComponentPlanner  Component = "planner"
	ComponentRegistry Component = "registry"
	ComponentStore    Component = "store"
	ComponentQueue    Component = "queue"
	ComponentLock     Component = "lock"
	ComponentDaemon   Component = "daemon"
	ComponentCLI      Component = "cli"
	ComponentMetrics  Component = "metrics"
	ComponentLogger   Component = "logger"
)

// Config is the logging configuration for both tiers
type Config struct {
	Level  Level  `json:"level" yaml:"level"`
	Format Format `json:"format" yaml:"format"`

	Console ConsoleConfig `json:"console" yaml:"console"`
	File    FileConfig    `json:"file" yaml:"file"`
}

// ConsoleConfig configures stderr/stdout logging
type ConsoleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Color applies to the text format only
	Color bool `json:"color" yaml:"color"`
}

// FileConfig configures rotating file logging
type FileConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// DefaultConfig returns console-only JSON logging at info level
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Console: ConsoleConfig{
			Enabled: true,
			Color:   true,
		},
		File: FileConfig{
			Enabled:    false,
			Path:       "/var/log/tempo/tempo.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("invalid log level: %s", c.Level)
	}

	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.File.Enabled {
		if c.File.Path == "" {
			return fmt.Errorf("file logging enabled but path is empty")
		}
		if c.File.MaxSizeMB <= 0 {
			return fmt.Errorf("file max size must be > 0")
		}
	}

	return nil
}
