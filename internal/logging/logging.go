// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Setup builds the process logger and installs it as the slog default.
// Level accepts "debug", "info", "warn", "error" (case-insensitive);
// anything else falls back to info.
func Setup(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	defaultLogger = logger
	return logger
}

// Discard routes all logging to io.Discard. Used by CLI commands that
// stream model output to stdout and must keep it clean.
func Discard() *slog.Logger {
	return Setup(io.Discard, "error")
}

// Default returns the current process logger.
func Default() *slog.Logger {
	return defaultLogger
}
