package logger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger is the rotating file tier. Entries are written as JSON lines.
type FileLogger struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// NewFileLogger creates the file tier from config.File
func NewFileLogger(config *Config) (*FileLogger, error) {
	if !config.File.Enabled {
		return nil, fmt.Errorf("file logging is not enabled")
	}
	if config.File.Path == "" {
		return nil, fmt.Errorf("file logging path is empty")
	}

	return &FileLogger{
		writer: &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		},
	}, nil
}

func (fl *FileLogger) log(level Level, msg string, component Component, source Source, fields map[string]interface{}) {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Component: component,
		Source:    source,
	}

	rest := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case string(taskIDKey):
			entry.TaskID = fmt.Sprint(v)
		case string(ownerKey):
			entry.Owner = fmt.Sprint(v)
		case "error":
			entry.Error = fmt.Sprint(v)
		default:
			rest[k] = stringifyErrors(v)
		}
	}
	if len(rest) > 0 {
		entry.Fields = rest
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	_, _ = fl.writer.Write(append(data, '\n'))
}

// stringifyErrors replaces error values, which json encodes as {}
func stringifyErrors(v interface{}) interface{} {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// Rotate closes the current file and starts a new one
func (fl *FileLogger) Rotate() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.writer.Rotate()
}

// Close closes the current file
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if err := fl.writer.Close(); err != nil {
		return fmt.Errorf("failed to close file logger: %w", err)
	}
	return nil
}
