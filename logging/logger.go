// Package logging provides structured logging for the meeting engine.
// It wraps zerolog behind a small interface so packages log with fields and
// tests can pass a no-op logger.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey type for context values to avoid collisions.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	FetchIDKey   ContextKey = "fetch_id"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a config string onto a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

type Config struct {
	Level       Level
	ServiceName string

	// JSONFormat enables JSON output when true, console output when false.
	JSONFormat bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: "meetingd",
		Output:      os.Stdout,
	}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger with the given fields attached to every entry.
	With(fields ...Field) Logger

	// WithContext attaches request and fetch ids found in ctx.
	WithContext(ctx context.Context) Logger

	Zerolog() zerolog.Logger
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

type logger struct {
	zl zerolog.Logger
}

func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service_name", cfg.ServiceName).
		Logger()
	return &logger{zl: zl}
}

func (l *logger) Zerolog() zerolog.Logger { return l.zl }

func parseLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *logger) Debug(msg string, fields ...Field) { addFields(l.zl.Debug(), fields).Msg(msg) }
func (l *logger) Info(msg string, fields ...Field)  { addFields(l.zl.Info(), fields).Msg(msg) }
func (l *logger) Warn(msg string, fields ...Field)  { addFields(l.zl.Warn(), fields).Msg(msg) }
func (l *logger) Error(msg string, fields ...Field) { addFields(l.zl.Error(), fields).Msg(msg) }

func (l *logger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = addFieldToContext(ctx, f)
	}
	return &logger{zl: ctx.Logger()}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	zctx := l.zl.With()
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		zctx = zctx.Str(string(RequestIDKey), id)
	}
	if id, ok := ctx.Value(FetchIDKey).(string); ok && id != "" {
		zctx = zctx.Str(string(FetchIDKey), id)
	}
	return &logger{zl: zctx.Logger()}
}

func addFields(event *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event = event.Str(f.Key, v)
		case int:
			event = event.Int(f.Key, v)
		case int64:
			event = event.Int64(f.Key, v)
		case float64:
			event = event.Float64(f.Key, v)
		case bool:
			event = event.Bool(f.Key, v)
		case error:
			event = event.Err(v)
		case time.Duration:
			event = event.Dur(f.Key, v)
		case time.Time:
			event = event.Time(f.Key, v)
		case []string:
			event = event.Strs(f.Key, v)
		case interface{ String() string }:
			event = event.Stringer(f.Key, v)
		default:
			event = event.Interface(f.Key, v)
		}
	}
	return event
}

func addFieldToContext(ctx zerolog.Context, f Field) zerolog.Context {
	switch v := f.Value.(type) {
	case string:
		return ctx.Str(f.Key, v)
	case int:
		return ctx.Int(f.Key, v)
	case int64:
		return ctx.Int64(f.Key, v)
	case bool:
		return ctx.Bool(f.Key, v)
	case error:
		return ctx.Err(v)
	case time.Duration:
		return ctx.Dur(f.Key, v)
	case interface{ String() string }:
		return ctx.Stringer(f.Key, v)
	default:
		return ctx.Interface(f.Key, v)
	}
}

// WithRequestID returns a context carrying id under RequestIDKey.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithFetchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, FetchIDKey, id)
}

type nopLogger struct{}

func (n nopLogger) Debug(string, ...Field)             {}
func (n nopLogger) Info(string, ...Field)              {}
func (n nopLogger) Warn(string, ...Field)              {}
func (n nopLogger) Error(string, ...Field)             {}
func (n nopLogger) With(...Field) Logger               { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
func (n nopLogger) Zerolog() zerolog.Logger            { return zerolog.Nop() }

// Nop returns a logger that discards all output.
func Nop() Logger { return nopLogger{} }
