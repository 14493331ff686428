// Package logger provides a small process-wide structured logger built on
// go.uber.org/zap, matching the ambient logging shape used across the
// gateway's packages: package-level functions backed by a singleton
// *zap.SugaredLogger.
package logger

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the zapcore.Encoder used by Initialize.
type Format int

const (
	// FormatText produces human-readable output, the default for interactive CLI use.
	FormatText Format = iota
	// FormatJSON produces machine-readable output, suitable for the gateway serving mode.
	FormatJSON
)

var singleton atomic.Pointer[zap.SugaredLogger]
var level zap.AtomicLevel

func init() {
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	singleton.Store(New())
}

// Option configures the logger built by New.
type Option func(*config)

type config struct {
	format Format
	level  zapcore.LevelEnabler
	output zapcore.WriteSyncer
}

// WithFormat selects FormatText (default) or FormatJSON.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithLevel sets the minimum level. Accepts any zapcore.LevelEnabler,
// including a zap.AtomicLevel for later dynamic adjustment.
func WithLevel(l zapcore.LevelEnabler) Option {
	return func(c *config) { c.level = l }
}

// WithOutput sets the destination writer, defaulting to os.Stderr.
func WithOutput(w zapcore.WriteSyncer) Option {
	return func(c *config) { c.output = w }
}

// New builds a pre-configured *zap.SugaredLogger. Defaults: text format, info
// level, stderr output, RFC3339 timestamps.
func New(opts ...Option) *zap.SugaredLogger {
	cfg := &config{
		format: FormatText,
		level:  level,
		output: zapcore.AddSync(os.Stderr),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch cfg.format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, cfg.output, cfg.level)
	return zap.New(core).Sugar()
}

// Initialize (re)configures the process-wide singleton. It reads
// MCP_GATEWAY_DEBUG to decide whether to raise the level to Debug and is
// safe to call more than once (e.g. once from the CLI root command, once
// from test setup).
func Initialize(opts ...Option) {
	if os.Getenv("MCP_GATEWAY_DEBUG") == "true" {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
	all := append([]Option{WithLevel(level)}, opts...)
	singleton.Store(New(all...))
}

// SetForTest installs an explicit logger, intended for test setup.
func SetForTest(l *zap.SugaredLogger) { singleton.Store(l) }

func current() *zap.SugaredLogger { return singleton.Load() }

// DebugEnabled reports whether MCP_GATEWAY_DEBUG=true was set at the last Initialize call.
func DebugEnabled() bool { return current().Desugar().Core().Enabled(zapcore.DebugLevel) }

// Debug logs at debug level.
func Debug(msg string) { current().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { current().Debugw(msg, kv...) }

// Info logs at info level.
func Info(msg string) { current().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { current().Infow(msg, kv...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { current().Warnw(msg, kv...) }

// Error logs at error level.
func Error(msg string) { current().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { current().Errorw(msg, kv...) }

// Panicf logs at error level and panics. Reserved for genuinely
// inconsistent persisted state (spec's error handling design, §7).
func Panicf(format string, args ...any) {
	current().Errorf(format, args...)
	panic(fmt.Sprintf(format, args...))
}
