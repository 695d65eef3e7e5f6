package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger is the logging interface used across tempo
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// Context variants add task_id and owner from the context
	DebugContext(ctx context.Context, msg string, args ...interface{})
	InfoContext(ctx context.Context, msg string, args ...interface{})
	WarnContext(ctx context.Context, msg string, args ...interface{})
	ErrorContext(ctx context.Context, msg string, args ...interface{})

	WithFields(fields map[string]interface{}) Logger
	WithComponent(component Component) Logger
	WithSource(source Source) Logger

	// Close flushes and closes all destinations
	Close() error
}

// Entry is a single log line as written by the file tier
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     Level                  `json:"level"`
	Message   string                 `json:"message"`
	Component Component              `json:"component,omitempty"`
	Source    Source                 `json:"log_source,omitempty"`
	TaskID    string                 `json:"task_id,omitempty"`
	Owner     string                 `json:"owner,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type contextKey string

const (
	taskIDKey contextKey = "task_id"
	ownerKey  contextKey = "owner"
)

// WithTaskID returns a context whose log entries carry task_id
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// WithOwner returns a context whose log entries carry owner
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// MultiLogger writes each entry to the console tier and, when enabled, the
// rotating file tier
type MultiLogger struct {
	config     *Config
	console    *ConsoleLogger
	file       *FileLogger
	baseFields map[string]interface{}
	component  Component
	source     Source
}

// NewLogger creates a logger whose console tier writes to stderr
func NewLogger(config *Config) (*MultiLogger, error) {
	return New(config, os.Stderr)
}

// New creates a logger whose console tier writes to out
func New(config *Config, out io.Writer) (*MultiLogger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	ml := &MultiLogger{
		config:     config,
		baseFields: make(map[string]interface{}),
		source:     SourceEngine,
	}

	if config.Console.Enabled {
		ml.console = NewConsoleLogger(config, out)
	}

	if config.File.Enabled {
		file, err := NewFileLogger(config)
		if err != nil {
			// file logging is optional
			fmt.Fprintf(os.Stderr, "Warning: Failed to create file logger: %v\n", err)
		} else {
			ml.file = file
		}
	}

	return ml, nil
}

func (ml *MultiLogger) Debug(msg string, args ...interface{}) {
	ml.log(context.Background(), LevelDebug, msg, args)
}

func (ml *MultiLogger) Info(msg string, args ...interface{}) {
	ml.log(context.Background(), LevelInfo, msg, args)
}

func (ml *MultiLogger) Warn(msg string, args ...interface{}) {
	ml.log(context.Background(), LevelWarn, msg, args)
}

func (ml *MultiLogger) Error(msg string, args ...interface{}) {
	ml.log(context.Background(), LevelError, msg, args)
}

func (ml *MultiLogger) DebugContext(ctx context.Context, msg string, args ...interface{}) {
	ml.log(ctx, LevelDebug, msg, args)
}

func (ml *MultiLogger) InfoContext(ctx context.Context, msg string, args ...interface{}) {
	ml.log(ctx, LevelInfo, msg, args)
}

func (ml *MultiLogger) WarnContext(ctx context.Context, msg string, args ...interface{}) {
	ml.log(ctx, LevelWarn, msg, args)
}

func (ml *MultiLogger) ErrorContext(ctx context.Context, msg string, args ...interface{}) {
	ml.log(ctx, LevelError, msg, args)
}

// WithFields returns a logger that adds fields to every entry
func (ml *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(ml.baseFields)+len(fields))
	for k, v := range ml.baseFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	child := ml.clone()
	child.baseFields = merged
	return child
}

// WithComponent returns a logger tagged with component
func (ml *MultiLogger) WithComponent(component Component) Logger {
	child := ml.clone()
	child.component = component
	return child
}

// WithSource returns a logger tagged with source
func (ml *MultiLogger) WithSource(source Source) Logger {
	child := ml.clone()
	child.source = source
	return child
}

func (ml *MultiLogger) clone() *MultiLogger {
	c := *ml
	return &c
}

// Close flushes and closes the file tier. Children share tiers with their
// parent, so only the root logger should be closed.
func (ml *MultiLogger) Close() error {
	if ml.file != nil {
		if err := ml.file.Close(); err != nil {
			return fmt.Errorf("file close: %w", err)
		}
	}
	return nil
}

func (ml *MultiLogger) log(ctx context.Context, level Level, msg string, args []interface{}) {
	if level.rank() < ml.config.Level.rank() {
		return
	}

	fields := make(map[string]interface{}, len(ml.baseFields)+len(args)/2+2)
	for k, v := range ml.baseFields {
		fields[k] = v
	}
	for i := 0; i+1 < len(args); i += 2 {
		fields[fmt.Sprintf("%v", args[i])] = args[i+1]
	}
	if len(args)%2 == 1 {
		fields["!BADKEY"] = args[len(args)-1]
	}

	if ctx != nil {
		if v, ok := ctx.Value(taskIDKey).(string); ok {
			fields[string(taskIDKey)] = v
		}
		if v, ok := ctx.Value(ownerKey).(string); ok {
			fields[string(ownerKey)] = v
		}
	}

	if ml.console != nil {
		ml.console.log(level, msg, ml.component, ml.source, fields)
	}
	if ml.file != nil {
		ml.file.log(level, msg, ml.component, ml.source, fields)
	}
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{})                            {}
func (n *NoOpLogger) Info(msg string, args ...interface{})                             {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})                             {}
func (n *NoOpLogger) Error(msg string, args ...interface{})                            {}
func (n *NoOpLogger) DebugContext(ctx context.Context, msg string, args ...interface{}) {}
func (n *NoOpLogger) InfoContext(ctx context.Context, msg string, args ...interface{})  {}
func (n *NoOpLogger) WarnContext(ctx context.Context, msg string, args ...interface{})  {}
func (n *NoOpLogger) ErrorContext(ctx context.Context, msg string, args ...interface{}) {}
func (n *NoOpLogger) WithFields(fields map[string]interface{}) Logger                  { return n }
func (n *NoOpLogger) WithComponent(component Component) Logger                         { return n }
func (n *NoOpLogger) WithSource(source Source) Logger                                  { return n }
func (n *NoOpLogger) Close() error                                                     { return nil }

var _ Logger = (*NoOpLogger)(nil)
var _ Logger = (*MultiLogger)(nil)

var (
	defaultLogger Logger = &NoOpLogger{}
	loggerMu      sync.RWMutex
)

// SetDefault replaces the process-wide logger
func SetDefault(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide logger
func Default() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// RedisLogger adapts a Logger to the go-redis internal logging hook
// (redis.SetLogger)
type RedisLogger struct {
	logger Logger
}

// NewRedisLogger returns a go-redis logging hook that writes warnings to l
func NewRedisLogger(l Logger) *RedisLogger {
	return &RedisLogger{logger: l.WithComponent(ComponentStore)}
}

// Printf implements the go-redis internal.Logging interface
func (r *RedisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	r.logger.WarnContext(ctx, fmt.Sprintf(format, v...), "source", "go-redis")
}
