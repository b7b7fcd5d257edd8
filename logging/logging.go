// Package logging contains the zap-backed loggers used by the planners and the CLI.
package logging

import (
	"io"
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

func newWriterLogger(name string, level Level, w zapcore.WriteSyncer) Logger {
	atomic := zap.NewAtomicLevelAt(level.AsZap())
	cfg := NewLoggerConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg.EncoderConfig),
		zapcore.Lock(w),
		atomic,
	)
	return &impl{
		SugaredLogger: zap.New(core, zap.AddCaller()).Sugar().Named(name),
		level:         atomic,
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) Logger {
	return newWriterLogger(name, INFO, os.Stdout)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	return newWriterLogger(name, DEBUG, os.Stdout)
}

// NewWriterLogger returns a new logger that outputs logs at level and above to w. Commands whose stdout carries
// results log this way to stderr.
func NewWriterLogger(name string, level Level, w io.Writer) Logger {
	return newWriterLogger(name, level, zapcore.AddSync(w))
}

// NewBlankLogger returns a logger that discards everything.
func NewBlankLogger(name string) Logger {
	atomic := zap.NewAtomicLevelAt(zap.DebugLevel)
	return &impl{SugaredLogger: zap.NewNop().Sugar().Named(name), level: atomic}
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the given `testing.TB`.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	atomic := zap.NewAtomicLevelAt(zap.DebugLevel)
	testCore := zaptest.NewLogger(tb, zaptest.Level(atomic)).Core()
	observerCore, observedLogs := observer.New(atomic)
	logger := zap.New(zapcore.NewTee(testCore, observerCore), zap.AddCaller())
	return &impl{SugaredLogger: logger.Sugar(), level: atomic}, observedLogs
}
