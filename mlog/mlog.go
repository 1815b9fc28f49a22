// Package mlog provides the process-wide logger.
package mlog

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	// Default is "info".
	Level string `yaml:"level"`

	// File, if set, redirects log output to the given file.
	File string `yaml:"file"`
}

func NewLogger(cfg *LogConfig) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if len(cfg.Level) > 0 {
		var err error
		lvl, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
		}
	}

	out := zapcore.Lock(os.Stderr)
	if len(cfg.File) > 0 {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zapcore.Lock(f)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, lvl)
	return zap.New(core), nil
}

var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	l, err := NewLogger(&LogConfig{})
	if err != nil {
		panic(fmt.Sprintf("mlog: failed to init default logger: %v", err))
	}
	defaultLogger.Store(l)
}

// L returns the process-wide logger. It never returns nil.
func L() *zap.Logger {
	return defaultLogger.Load()
}

// SetL replaces the process-wide logger returned by L.
func SetL(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger.Store(l)
}
