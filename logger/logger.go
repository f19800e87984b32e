// Package logger provides structured logging for SightKit.
//
// This package wraps Go's standard log/slog with:
//   - a global DefaultLogger configured from LOG_LEVEL
//   - contextual fields (session, attempt, language) lifted from context.Context
//   - component-scoped loggers for the streaming stack
//
// All package-level functions use DefaultLogger, which can be reconfigured
// with SetLevel, SetOutput or Configure.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized at slog.LevelInfo unless
	// LOG_LEVEL says otherwise.
	DefaultLogger *slog.Logger

	mu           sync.Mutex
	logOutput    io.Writer = os.Stderr
	currentLevel           = new(slog.LevelVar)
	useJSON      bool
	commonFields []slog.Attr
)

func init() {
	currentLevel.Set(slog.LevelInfo)
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		currentLevel.Set(ParseLevel(envLevel))
	}
	rebuild()
}

// rebuild recreates DefaultLogger from the current settings. Must be called
// with mu held, or from init.
func rebuild() {
	opts := &slog.HandlerOptions{Level: currentLevel}

	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}

	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
}

// ParseLevel converts a textual level to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise info.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects log output. Primarily for tests and the CLI.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logOutput = w
	rebuild()
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context fields.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context fields.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning. Use for recoverable errors.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning with context fields.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context fields.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// ComponentLogger tags every record with a component name. It satisfies the
// small Debug/Info/Warn/Error logger interfaces used by streaming and capture.
type ComponentLogger struct {
	component string
}

// For returns a ComponentLogger for the named component.
func For(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

func (c *ComponentLogger) with(keysAndValues []any) []any {
	return append([]any{"component", c.component}, keysAndValues...)
}

// Debug logs at debug level.
func (c *ComponentLogger) Debug(msg string, keysAndValues ...any) {
	Debug(msg, c.with(keysAndValues)...)
}

// Info logs at info level.
func (c *ComponentLogger) Info(msg string, keysAndValues ...any) {
	Info(msg, c.with(keysAndValues)...)
}

// Warn logs at warn level.
func (c *ComponentLogger) Warn(msg string, keysAndValues ...any) {
	Warn(msg, c.with(keysAndValues)...)
}

// Error logs at error level.
func (c *ComponentLogger) Error(msg string, keysAndValues ...any) {
	Error(msg, c.with(keysAndValues)...)
}

// DebugContext logs at debug level with context fields.
func (c *ComponentLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	DebugContext(ctx, msg, c.with(keysAndValues)...)
}

// InfoContext logs at info level with context fields.
func (c *ComponentLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	InfoContext(ctx, msg, c.with(keysAndValues)...)
}

// WarnContext logs at warn level with context fields.
func (c *ComponentLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	WarnContext(ctx, msg, c.with(keysAndValues)...)
}

// ErrorContext logs at error level with context fields.
func (c *ComponentLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	ErrorContext(ctx, msg, c.with(keysAndValues)...)
}
