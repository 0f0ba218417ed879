package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a deliberately small, framework-agnostic logging interface.
// Components depend on this rather than on zap directly so tests can swap
// in a recording or no-op implementation.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning.
	Warn(msg string, fields ...Field)

	// Error logs an error.
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// Config controls how NewZapLogger builds its cores.
type Config struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "json" or "console"
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`

	// File, when set, adds a JSON core writing to a rotated log file.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ZapLogger implements Logger on top of a *zap.Logger.
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger builds a zap-backed Logger writing to console (stdout when
// console is nil) and, optionally, to a lumberjack-rotated file.
func NewZapLogger(cfg Config, console zapcore.WriteSyncer) (*ZapLogger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoderFor(cfg.Format), console, level)}

	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoderFor("json"), fileWriter, level))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	z := zap.New(zapcore.NewTee(cores...), opts...)
	if cfg.ServiceName != "" {
		z = z.Named(cfg.ServiceName)
	}
	return &ZapLogger{z: z}, nil
}

func encoderFor(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if strings.EqualFold(format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, toZap(fields)...) }

func (l *ZapLogger) Info(msg string, fields ...Field) { l.z.Info(msg, toZap(fields)...) }

func (l *ZapLogger) Warn(msg string, fields ...Field) { l.z.Warn(msg, toZap(fields)...) }

func (l *ZapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, toZap(fields)...) }

// With returns a child logger. A "component" field also names the child
// logger so console output reads "clarity.analyzer".
func (l *ZapLogger) With(fields ...Field) Logger {
	child := l.z
	for _, f := range fields {
		if f.Key == "component" {
			if name, ok := f.Value.(string); ok {
				child = child.Named(name)
			}
		}
	}
	return &ZapLogger{z: child.With(toZap(fields)...)}
}

// Sync flushes any buffered entries.
func (l *ZapLogger) Sync() error {
	return l.z.Sync()
}

// Zap exposes the underlying logger for libraries that want one.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.z
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &ZapLogger{z: zap.NewNop()}
}

// Err is shorthand for the conventional error field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
