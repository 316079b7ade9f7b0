// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides component-scoped structured logging.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level is a logging severity.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config controls logger construction.
type Config struct {
	Output io.Writer
	Level  Level
	JSON   bool
}

// DefaultConfig logs text at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Output: os.Stderr,
		Level:  LevelInfo,
	}
}

// Logger wraps slog.Logger with component helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that did not configure logging.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent returns a child logger tagged with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// With returns a child logger carrying args.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(DefaultConfig()))
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// WithComponent returns a child of the default logger tagged with component.
func WithComponent(component string) *Logger {
	return Default().WithComponent(component)
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
