package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, mutate func(*Config)) (*MultiLogger, *bytes.Buffer) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	ml, err := New(cfg, &buf)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { _ = ml.Close() })
	return ml, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", scanner.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level to be info, got %s", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected default format to be json, got %s", cfg.Format)
	}
	if !cfg.Console.Enabled {
		t.Error("expected console to be enabled by default")
	}
	if cfg.File.Enabled {
		t.Error("expected file to be disabled by default")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid log level", func(c *Config) { c.Level = "verbose" }, true},
		{"invalid format", func(c *Config) { c.Format = "xml" }, true},
		{"file enabled without path", func(c *Config) { c.File.Enabled = true; c.File.Path = "" }, true},
		{"file enabled without size", func(c *Config) { c.File.Enabled = true; c.File.MaxSizeMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJSONConsole_ComponentAndFields(t *testing.T) {
	ml, buf := newTestLogger(t, nil)

	log := ml.WithComponent(ComponentPlanner).WithFields(map[string]interface{}{"owner": "alice"})
	log.Info("window reserved", "window_id", "w-1", "conflicts", 0)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line["msg"] != "window reserved" {
		t.Errorf("expected msg 'window reserved', got %v", line["msg"])
	}
	if line["component"] != "planner" {
		t.Errorf("expected component planner, got %v", line["component"])
	}
	if line["log_source"] != string(SourceEngine) {
		t.Errorf("expected source %s, got %v", SourceEngine, line["log_source"])
	}
	if line["owner"] != "alice" || line["window_id"] != "w-1" {
		t.Errorf("expected fields to be present, got %v", line)
	}
}

func TestLoggerContext(t *testing.T) {
	ml, buf := newTestLogger(t, nil)

	ctx := WithOwner(WithTaskID(context.Background(), "task-7"), "bob")
	ml.WithSource(SourceRuntime).InfoContext(ctx, "outcome received")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["task_id"] != "task-7" || lines[0]["owner"] != "bob" {
		t.Errorf("expected context fields, got %v", lines[0])
	}
	if lines[0]["log_source"] != string(SourceRuntime) {
		t.Errorf("expected runtime source, got %v", lines[0]["log_source"])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	ml, buf := newTestLogger(t, func(c *Config) { c.Level = LevelWarn })

	ml.Debug("debug message")
	ml.Info("info message")
	ml.Warn("warn message")
	ml.Error("error message", "error", errors.New("boom"))

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1]["error"] != "boom" {
		t.Errorf("expected error string boom, got %v", lines[1]["error"])
	}
}

func TestWithFields_DoesNotMutateParent(t *testing.T) {
	ml, buf := newTestLogger(t, nil)

	_ = ml.WithFields(map[string]interface{}{"child": true})
	ml.Info("parent")

	lines := decodeLines(t, buf)
	if _, ok := lines[0]["child"]; ok {
		t.Error("expected parent logger to be unaffected by child fields")
	}
}

func TestTextConsole(t *testing.T) {
	ml, buf := newTestLogger(t, func(c *Config) {
		c.Format = FormatText
		c.Console.Color = true
	})

	ml.WithComponent(ComponentQueue).Info("armed", "task_id", "t-1")

	out := buf.String()
	if !strings.Contains(out, "[queue]") {
		t.Errorf("expected component tag in %q", out)
	}
	if !strings.Contains(out, "armed") || !strings.Contains(out, "t-1") {
		t.Errorf("expected message and field in %q", out)
	}
}

func TestFileTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.log")
	ml, _ := newTestLogger(t, func(c *Config) {
		c.Console.Enabled = false
		c.File.Enabled = true
		c.File.Path = path
	})

	ctx := WithTaskID(context.Background(), "nightly")
	ml.WithComponent(ComponentStore).ErrorContext(ctx, "save failed", "error", errors.New("conn refused"), "attempt", 2)
	if err := ml.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry Entry
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("invalid entry %q: %v", data, err)
	}
	if entry.TaskID != "nightly" {
		t.Errorf("expected task id nightly, got %q", entry.TaskID)
	}
	if entry.Error != "conn refused" {
		t.Errorf("expected error 'conn refused', got %q", entry.Error)
	}
	if entry.Component != ComponentStore || entry.Level != LevelError {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Fields["attempt"] != float64(2) {
		t.Errorf("expected attempt field 2, got %v", entry.Fields["attempt"])
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := &NoOpLogger{}

	logger.Debug("test")
	logger.InfoContext(context.Background(), "test")
	_ = logger.WithFields(map[string]interface{}{"key": "value"})
	_ = logger.WithComponent(ComponentPlanner)
	_ = logger.WithSource(SourceEngine)

	if err := logger.Close(); err != nil {
		t.Errorf("NoOpLogger.Close() should not error, got %v", err)
	}
}

func TestGlobalLogger(t *testing.T) {
	ml, buf := newTestLogger(t, nil)

	SetDefault(ml)
	defer SetDefault(&NoOpLogger{})

	Info("global info")
	Warn("global warn")

	if got := len(decodeLines(t, buf)); got != 2 {
		t.Errorf("expected 2 lines via default logger, got %d", got)
	}
}

func TestRedisLogger(t *testing.T) {
	ml, buf := newTestLogger(t, nil)

	NewRedisLogger(ml).Printf(context.Background(), "redis: connection pool: %s", "timeout")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["msg"] != "redis: connection pool: timeout" {
		t.Errorf("unexpected message %v", lines[0]["msg"])
	}
	if lines[0]["level"] != "WARN" {
		t.Errorf("expected WARN level, got %v", lines[0]["level"])
	}
}

func BenchmarkMultiLoggerInfo(b *testing.B) {
	var buf bytes.Buffer
	ml, _ := New(DefaultConfig(), &buf)
	defer ml.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ml.Info("benchmark test", "iteration", i)
		buf.Reset()
	}
}

func BenchmarkLogLevelFiltered(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Level = LevelError
	var buf bytes.Buffer
	ml, _ := New(cfg, &buf)
	defer ml.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ml.Info("this should be filtered", "iteration", i)
	}
}
