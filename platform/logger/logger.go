// Package logger wraps slog with the handful of structured events the API and
// the scheduler worker emit.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
)

type Logger struct {
	*slog.Logger
}

// New logs text at debug level in development and JSON at info level elsewhere.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) *Logger {
	if strings.EqualFold(env, "development") {
		return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

// Nop discards everything. Meant for tests.
func Nop() *Logger {
	return NewWithWriter("test", io.Discard)
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// WithContext adds request_id and user_id when the middleware stored them on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	var attrs []any
	if id, _ := ctx.Value(RequestIDKey).(string); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id, _ := ctx.Value(UserIDKey).(string); id != "" {
		attrs = append(attrs, slog.String("user_id", id))
	}
	if len(attrs) == 0 {
		return l
	}
	return l.with(attrs...)
}

func (l *Logger) WithCamp(campID int64) *Logger {
	return l.with(slog.Int64("camp_id", campID))
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// JobEvent records a scheduled job state change; a non-nil err logs at error level.
func (l *Logger) JobEvent(event, jobName string, err error) {
	attrs := []any{slog.String("event", event), slog.String("job", jobName)}
	if err != nil {
		l.Error("job_event", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Info("job_event", attrs...)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded", slog.String("client_ip", clientIP), slog.String("path", path))
}

// AsynqAdapter satisfies asynq.Logger.
type AsynqAdapter struct {
	log *Logger
}

func (l *Logger) ForAsynq() *AsynqAdapter {
	return &AsynqAdapter{log: l}
}

func (a *AsynqAdapter) Debug(args ...interface{}) { a.log.Debug(fmt.Sprint(args...)) }
func (a *AsynqAdapter) Info(args ...interface{})  { a.log.Info(fmt.Sprint(args...)) }
func (a *AsynqAdapter) Warn(args ...interface{})  { a.log.Warn(fmt.Sprint(args...)) }
func (a *AsynqAdapter) Error(args ...interface{}) { a.log.Error(fmt.Sprint(args...)) }
func (a *AsynqAdapter) Fatal(args ...interface{}) {
	a.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
