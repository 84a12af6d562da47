package log

import (
	stderrors "errors"
	"log/slog"

	"github.com/felixgeelhaar/brewprobe/internal/errors"
)

// Logger provides structured logging with slog
type Logger struct {
	slog *slog.Logger
}

// New creates a new Logger with the given configuration
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.ToSlogLevel()}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output.Writer(), opts)
	default:
		handler = slog.NewTextHandler(config.Output.Writer(), opts)
	}

	l := slog.New(handler)
	if config.ServiceName != "" {
		l = l.With("service", config.ServiceName, "version", config.ServiceVersion)
	}

	return &Logger{slog: l}
}

// Default creates a logger with default configuration
func Default() *Logger {
	return New(DefaultConfig())
}

// With returns a new Logger with the given attributes added to all log entries
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithError adds error details to the logger.
// A ProbeError contributes its code, class and failing command.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With(errorArgs(err)...)
}

func errorArgs(err error) []any {
	var probeErr *errors.ProbeError
	if !stderrors.As(err, &probeErr) {
		return []any{"error", err.Error()}
	}

	args := []any{
		"error", probeErr.Message,
		"error_code", string(probeErr.Code),
		"error_class", probeErr.Class(),
	}
	if len(probeErr.Command) > 0 {
		args = append(args, "command", probeErr.Command)
	}
	if len(probeErr.Suggestions) > 0 {
		args = append(args, "suggestions", probeErr.Suggestions)
	}
	if probeErr.DocsURL != "" {
		args = append(args, "docs_url", probeErr.DocsURL)
	}
	if probeErr.Cause != nil {
		args = append(args, "cause", probeErr.Cause.Error())
	}
	return args
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// LogError logs an error with full details
func (l *Logger) LogError(msg string, err error) {
	if err == nil {
		return
	}
	l.Error(msg, errorArgs(err)...)
}
