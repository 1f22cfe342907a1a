// file: internal/logger/logger.go
// version: 1.0.0
// guid: d735e17a-53f0-478f-8f2d-45dd02617f0f

package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogFormat defines the available log formats
type LogFormat string

const (
	// FormatJSON is the JSON format
	FormatJSON LogFormat = "json"
	// FormatConsole is the console format
	FormatConsole LogFormat = "console"
)

// ParseLogFormat parses a string into a LogFormat, defaulting to JSON.
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string
	// Format is the log format (json, console)
	Format LogFormat
	// Output is the output writer (default: os.Stdout)
	Output io.Writer
	// TimeFormat is the time format (default: time.RFC3339)
	TimeFormat string
}

// Logger wraps zerolog.Logger with a field-map API.
type Logger struct {
	zerolog.Logger
}

var (
	globalLogger *Logger
	once         sync.Once
	mu           sync.RWMutex

	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
)

// Get returns the global logger instance
func Get() *Logger {
	once.Do(func() {
		mu.Lock()
		if globalLogger == nil {
			globalLogger = build(defaultConfig)
		}
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Setup replaces the global logger with one built from cfg.
func Setup(cfg Config) *Logger {
	l := build(cfg)
	once.Do(func() {})
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return l
}

// New builds a standalone logger, mainly for tests.
func New(cfg Config) *Logger {
	return build(cfg)
}

func build(cfg Config) *Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat})
	default:
		zl = zerolog.New(output)
	}
	zl = zl.Level(level).With().Timestamp().Logger()
	return &Logger{Logger: zl}
}

func withFields(e *zerolog.Event, fields []map[string]interface{}) *zerolog.Event {
	for _, set := range fields {
		for k, v := range set {
			if err, ok := v.(error); ok {
				e = e.AnErr(k, err)
				continue
			}
			e = e.Interface(k, v)
		}
	}
	return e
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	withFields(l.Logger.Debug(), fields).Msg(msg)
}

// Info logs an info message with optional fields
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	withFields(l.Logger.Info(), fields).Msg(msg)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	withFields(l.Logger.Warn(), fields).Msg(msg)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	withFields(l.Logger.Error(), fields).Msg(msg)
}

// WithFields returns a child logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		l = Get()
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{Logger: l.Logger.With().Fields(fields).Logger()}
}

// WithComponent is shorthand for WithFields({"component": name}).
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithFields(map[string]interface{}{"component": name})
}

type loggerKey struct{}

// NewContext returns ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return Get()
}
