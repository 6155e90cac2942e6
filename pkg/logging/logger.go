// Package logging wraps log/slog behind a small multi-destination Logger:
// console, an optional log file, and a pluggable LogExporter for tests or a
// future centralized sink. Every structured field is passed through the
// secret scrubber before it reaches any destination.
//
// Grounded on the same Config/Logger/LogExporter/multiHandler shape used
// elsewhere in this codebase's logging packages, with the scrubber wired
// in directly rather than left as an enterprise extension point.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kajovo/cascade/internal/secrets"
)

// Level mirrors slog.Level with a stable, package-local representation so
// callers don't need to import log/slog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlog() slog.Level {
	switch l {
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

// LogEntry is handed to a LogExporter for every record emitted at or above
// the configured level.
type LogEntry struct {
	Time    time.Time
	Level   Level
	Service string
	Message string
	Attrs   map[string]any
}

// LogExporter lets a caller capture log entries in addition to console/file
// output — used by tests (BufferedExporter) and available for a future
// centralized sink (WriterExporter).
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// Config controls where and how a Logger writes.
type Config struct {
	Level    Level
	LogDir   string // when set, logs additionally go to <LogDir>/<Service>_<YYYY-MM-DD>.log as JSON
	Service  string
	JSON     bool // console format; file output is always JSON
	Quiet    bool // disable console output
	Exporter LogExporter
}

// Logger is the handle every component logs through.
type Logger struct {
	slog     *slog.Logger
	service  string
	exporter LogExporter
	closers  []io.Closer
	mu       sync.Mutex
}

// New builds a Logger from cfg, fanning out to console, an optional file,
// and an optional exporter.
func New(cfg Config) (*Logger, error) {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog()}

	if !cfg.Quiet {
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	l := &Logger{service: cfg.Service, exporter: cfg.Exporter}

	if cfg.LogDir != "" {
		dir := expandHome(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		name := cfg.Service
		if name == "" {
			name = "cascade"
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		l.closers = append(l.closers, f)
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	l.slog = slog.New(handler).With("service", cfg.Service)
	return l, nil
}

// Default returns a Logger writing text to stderr at info level, with no
// file or exporter — suitable for tests and quick scripts.
func Default() *Logger {
	l, _ := New(Config{Level: LevelInfo, Service: "cascade"})
	return l
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a derived Logger that always includes the given attrs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), service: l.service, exporter: l.exporter}
}

// Slog exposes the underlying *slog.Logger for callers that want to pass it
// to a library expecting one.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes the exporter (if any) and closes any open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exporter != nil {
		_ = l.exporter.Flush(context.Background())
		_ = l.exporter.Close()
	}
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) log(level Level, msg string, args ...any) {
	redacted := redactArgs(args)
	l.slog.Log(context.Background(), level.toSlog(), msg, redacted...)
	if l.exporter != nil {
		entry := LogEntry{Time: time.Now(), Level: level, Service: l.service, Message: msg, Attrs: argsToMap(redacted)}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = l.exporter.Export(ctx, entry)
		cancel()
	}
}

// redactArgs passes every odd-positioned value (the slog key/value
// convention) through the secret scrubber before it's ever formatted.
func redactArgs(args []any) []any {
	out := make([]any, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if m, ok := out[i+1].(map[string]any); ok {
			out[i+1] = secrets.Redact(m)
			continue
		}
		if isSensitive(key) {
			out[i+1] = "***REDACTED***"
		}
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range []string{"api_key", "password", "token", "secret", "authorization", "cookie"} {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func argsToMap(args []any) map[string]any {
	out := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			out[k] = args[i+1]
		}
	}
	return out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// multiHandler fans a single slog.Record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// NopExporter discards every entry. A Logger with no exporter set exports
// nothing at all, without using NopExporter.
type NopExporter struct{}

func (NopExporter) Export(context.Context, LogEntry) error { return nil }
func (NopExporter) Flush(context.Context) error            { return nil }
func (NopExporter) Close() error                           { return nil }

// BufferedExporter accumulates entries in memory; it is used by tests; the
// Run Logger does not fall back to it when disk writes fail.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewBufferedExporter() *BufferedExporter { return &BufferedExporter{} }

func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

func (e *BufferedExporter) Flush(context.Context) error { return nil }
func (e *BufferedExporter) Close() error                { return nil }

func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// WriterExporter writes each entry as a line of JSON-ish text to w; mainly
// useful for piping buffered entries somewhere after a degraded-logging
// recovery.
type WriterExporter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterExporter(w io.Writer) *WriterExporter { return &WriterExporter{w: w} }

func (e *WriterExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "%s [%s] %s %v\n", entry.Time.Format(time.RFC3339), entry.Level, entry.Message, entry.Attrs)
	return err
}

func (e *WriterExporter) Flush(context.Context) error { return nil }
func (e *WriterExporter) Close() error                { return nil }
