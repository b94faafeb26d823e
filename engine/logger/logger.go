// Package logger holds the slog.Logger shared by every engine package.
// Nothing is logged until SetLogger is called.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled reports false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(nopHandler{}))
}

// SetLogger replaces the engine logger. Passing nil restores the silent default.
// Safe for concurrent use with logging from the render goroutine and worker pool.
//
// Levels used by the engine:
//   - slog.LevelDebug: cache hits/misses, graph schedule rebuilds
//   - slog.LevelInfo: backend lifecycle, profiler output
//   - slog.LevelWarn: skipped nodes and draws, missing bindings (once per name)
//   - slog.LevelError: pipeline compile failures, recovered panics
//
// Parameters:
//   - l: the logger to use, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	current.Store(l)
}

// Logger returns the active engine logger.
//
// Returns:
//   - *slog.Logger: the logger set by SetLogger, or a no-op logger
func Logger() *slog.Logger {
	return current.Load()
}

// ParseLevel maps a config level name ("debug", "info", "warn", "error") to a slog.Level.
// Unknown names map to slog.LevelInfo.
//
// Parameters:
//   - name: the level name, case-insensitive
//
// Returns:
//   - slog.Level: the matching level
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
