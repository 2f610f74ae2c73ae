// Package logger provides structured logging using slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// OrgIDKey is the context key for organization ID.
	OrgIDKey contextKey = "org_id"
	// RunIDKey is the context key for a pipeline run ID.
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// New creates a new logger writing to stdout.
func New(level, format string) *Logger {
	l := NewWithWriter(os.Stdout, level, format)
	slog.SetDefault(l.Logger)
	return l
}

// NewWithWriter creates a logger writing to w. It does not touch the slog default.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return NewWithWriter(io.Discard, "error", "text")
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a logger carrying request, org and run IDs found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := []any{}

	for _, key := range []contextKey{RequestIDKey, OrgIDKey, RunIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}

	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithRequestID returns a logger with the request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// WithOrg returns a logger with the organization ID.
func (l *Logger) WithOrg(orgID string) *Logger {
	return &Logger{Logger: l.With(slog.String("org_id", orgID))}
}

// WithRun returns a logger scoped to one pipeline run.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.With(slog.String("run_id", runID))}
}

// WithService returns a logger with the service name.
func (l *Logger) WithService(service string) *Logger {
	return &Logger{Logger: l.With(slog.String("service", service))}
}

// WithComponent returns a logger with the component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", component))}
}

// WithError returns a logger with the error.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.With(slog.String("error", err.Error()))}
}

// SetContextValue sets a value in the context.
func SetContextValue(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// GetRequestID gets the request ID from context.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// GetOrgID gets the organization ID from context.
func GetOrgID(ctx context.Context) string {
	v, _ := ctx.Value(OrgIDKey).(string)
	return v
}

// GetRunID gets the pipeline run ID from context.
func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(RunIDKey).(string)
	return v
}
