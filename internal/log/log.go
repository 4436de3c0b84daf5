// ABOUTME: Level-gated logger on top of log/slog for SDK and CLI diagnostics
// ABOUTME: Global level via SetLevel; writes text records to stderr unless redirected

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level  slog.LevelVar
	logger atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(LevelWarn)
	SetOutput(os.Stderr)
}

// SetLevel sets the global log level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return level.Level()
}

// SetOutput redirects log records to w. The level is shared across outputs.
func SetOutput(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level})
	logger.Store(slog.New(h))
}

// Enabled reports whether records at l would be emitted.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) {
	emit(LevelDebug, format, args)
}

// Info logs an info message if the level allows it.
func Info(format string, args ...any) {
	emit(LevelInfo, format, args)
}

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) {
	emit(LevelWarn, format, args)
}

// Error logs an error message.
func Error(format string, args ...any) {
	emit(LevelError, format, args)
}

func emit(l slog.Level, format string, args []any) {
	if !Enabled(l) {
		return
	}
	logger.Load().Log(context.Background(), l, fmt.Sprintf(format, args...))
}
