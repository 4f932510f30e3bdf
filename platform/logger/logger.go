// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// RunIDKey is the context key for a collection run ID
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and run_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("run_id", runID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithKommune returns a logger scoped to one municipality.
func (l *Logger) WithKommune(number string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("kommune", number)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// RegistryFetch logs one upstream registry page fetch.
func (l *Logger) RegistryFetch(kommune string, page, received int, elapsed time.Duration) {
	l.Debug("registry_fetch",
		slog.String("kommune", kommune),
		slog.Int("page", page),
		slog.Int("received", received),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// KommuneCollected logs the outcome of one municipality collection.
func (l *Logger) KommuneCollected(kommune string, seen, created, updated, moved, errs int, elapsed time.Duration) {
	l.Info("kommune_collected",
		slog.String("kommune", kommune),
		slog.Int("seen", seen),
		slog.Int("new", created),
		slog.Int("updated", updated),
		slog.Int("moved", moved),
		slog.Int("errors", errs),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// InvariantViolation logs a would-be address-history invariant breach.
// These are never repaired automatically and need manual inspection.
func (l *Logger) InvariantViolation(orgNumber, kind, detail string) {
	l.Error("invariant_violation",
		slog.String("org_number", orgNumber),
		slog.String("address_kind", kind),
		slog.String("detail", detail),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
