package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Logger is the logging interface used throughout the node runner. It wraps
// zerolog so call sites stay decoupled from the backend and tests can swap in
// a capturing implementation.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

// Options configures logger construction.
type Options struct {
	// Level is one of debug, info, warn, error, fatal, disabled.
	Level string
	// File, when set, appends JSON log lines to this path in addition to the
	// console writer.
	File string
	// Writers are additional sinks, e.g. a node's in-memory log ring or the
	// dashboard feed.
	Writers []io.Writer
	// NoConsole suppresses the pretty stdout writer. The dashboard sets this
	// so log lines do not fight the TUI for the terminal.
	NoConsole bool
}

type zerologLogger struct {
	logger zerolog.Logger
}

// New creates a Logger from the given options.
func New(opts Options) (Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	if !opts.NoConsole {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}
	writers = append(writers, opts.Writers...)
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", "membitnode").
		Logger()

	return &zerologLogger{logger: zl}, nil
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *zerologLogger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *zerologLogger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *zerologLogger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *zerologLogger) Error(msg string) { l.logger.Error().Msg(msg) }
func (l *zerologLogger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return &zerologLogger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = addField(ctx, k, v)
	}
	return &zerologLogger{logger: ctx.Logger()}
}

func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zerologLogger{logger: l.logger.With().Err(err).Logger()}
}

func (l *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	applyFields(l.logger.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	applyFields(l.logger.Info(), fields).Msg(msg)
}

func (l *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	applyFields(l.logger.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	applyFields(l.logger.Error(), fields).Msg(msg)
}

func addField(ctx zerolog.Context, key string, value interface{}) zerolog.Context {
	switch v := value.(type) {
	case string:
		return ctx.Str(key, v)
	case int:
		return ctx.Int(key, v)
	case int64:
		return ctx.Int64(key, v)
	case bool:
		return ctx.Bool(key, v)
	case time.Duration:
		return ctx.Dur(key, v)
	case error:
		return ctx.AnErr(key, v)
	default:
		return ctx.Interface(key, v)
	}
}

func applyFields(event *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	for key, value := range fields {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		case error:
			event = event.AnErr(key, v)
		case []string:
			event = event.Strs(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	return event
}

var globalLogger Logger

// Initialize sets up the global logger.
func Initialize(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	globalLogger = l
	if zl, ok := l.(*zerologLogger); ok {
		zlog.Logger = zl.logger
	}
	return nil
}

// GetLogger returns the global logger, constructing a default one on first
// use if Initialize was never called.
func GetLogger() Logger {
	if globalLogger == nil {
		globalLogger, _ = New(Options{Level: "info"})
	}
	return globalLogger
}
