package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger is the console tier, built on log/slog
type ConsoleLogger struct {
	handler slog.Handler
}

// NewConsoleLogger returns a console tier writing to out in the configured format
func NewConsoleLogger(config *Config, out io.Writer) *ConsoleLogger {
	opts := &slog.HandlerOptions{Level: slogLevel(config.Level)}

	var handler slog.Handler
	switch {
	case config.Format == FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	case config.Console.Color:
		handler = newColorTextHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return &ConsoleLogger{handler: handler}
}

func (cl *ConsoleLogger) log(level Level, msg string, component Component, source Source, fields map[string]interface{}) {
	record := slog.NewRecord(time.Now(), slogLevel(level), msg, 0)

	if component != "" {
		record.AddAttrs(slog.String("component", string(component)))
	}
	if source != "" {
		record.AddAttrs(slog.String("log_source", string(source)))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.AddAttrs(slog.Any(k, fields[k]))
	}

	_ = cl.handler.Handle(context.Background(), record)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// colorTextHandler writes one human-readable line per record:
//
//	15:04:05.000 INFO  [planner] retry armed task_id=report attempt=2
type colorTextHandler struct {
	w    io.Writer
	opts *slog.HandlerOptions
	mu   sync.Mutex

	levelColors map[slog.Level]*color.Color
	keyColor    *color.Color
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{
		w:    w,
		opts: opts,
		levelColors: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgCyan),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
		keyColor: color.New(color.Faint),
	}
}

func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')

	levelColor, ok := h.levelColors[r.Level]
	if !ok {
		levelColor = h.levelColors[slog.LevelInfo]
	}
	b.WriteString(levelColor.Sprintf("%-5s", r.Level.String()))

	var component string
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "component":
			component = a.Value.String()
		case "log_source":
		default:
			attrs = append(attrs, a)
		}
		return true
	})

	if component != "" {
		fmt.Fprintf(&b, " [%s]", component)
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range attrs {
		fmt.Fprintf(&b, " %s=%v", h.keyColor.Sprint(a.Key), a.Value.Any())
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs and WithGroup are not used by ConsoleLogger, which builds full
// records itself
func (h *colorTextHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *colorTextHandler) WithGroup(_ string) slog.Handler { return h }
