// Package logging builds the slog loggers used across the client.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// redacted lists attribute keys whose values never reach the log output.
var redacted = map[string]bool{
	"token":             true,
	"access_token":      true,
	"refresh_token":     true,
	"password":          true,
	"secret_access_key": true,
	"session_token":     true,
	"authorization":     true,
}

// NewLogger creates a logger writing to stderr; stdout is reserved for
// command output.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w in "text" or "json"
// format. Credential attributes are masked.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redacted[strings.ToLower(a.Key)] && a.Value.String() != "" {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
}

// ValidFormat reports whether format is a supported output format.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}
