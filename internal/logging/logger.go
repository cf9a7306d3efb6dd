package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const loggerKey ctxKey = iota

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once

	// level is shared by every logger built here so it can change at runtime
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

// Options controls logger construction
type Options struct {
	Level string
	Dev   bool
}

// NewLogger builds a zap logger. Development mode logs colored console
// lines, otherwise JSON. LOG_LEVEL overrides opts.Level.
func NewLogger(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.Dev || os.Getenv("ENV") == "dev" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	lvl := opts.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		lvl = env
	}
	if lvl != "" {
		SetLevel(lvl)
	}
	config.Level = level

	return config.Build()
}

// SetLevel changes the level of all loggers built by NewLogger.
// Unknown level names are ignored.
func SetLevel(name string) bool {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return false
	}
	level.SetLevel(l)
	return true
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *zap.Logger) {
	defaultLoggerOnce.Do(func() {})
	defaultLogger = logger
}

// DefaultLogger returns the process-wide logger
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		logger, err := NewLogger(Options{})
		if err != nil {
			logger = zap.NewNop()
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// WithLogger attaches a logger to ctx
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx or the default logger
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return DefaultLogger()
}

func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// WithFields adds structured fields to the logger in context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(fields...))
}
