package slogobs

import (
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	// FormatText is slog's key=value text format (default).
	FormatText Format = "text"

	// FormatJSON emits one JSON object per line, for log aggregation.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. Unknown values fall back to FormatText.
func ParseFormat(s string) Format {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// String returns the string representation of the Format.
func (f Format) String() string {
	return string(f)
}

// LevelTrace sits below slog.LevelDebug and enables per-event stream logs.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel parses a level name (trace, debug, info, warn, error).
// Unknown values fall back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogLevelFromEnv reads GATEWAY_LOG_LEVEL, then LOG_LEVEL, defaulting to INFO.
func GetLogLevelFromEnv() slog.Level {
	if level := os.Getenv("GATEWAY_LOG_LEVEL"); level != "" {
		return ParseLevel(level)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return ParseLevel(level)
	}
	return slog.LevelInfo
}

// GetFormatFromEnv reads GATEWAY_LOG_FORMAT, then LOG_FORMAT, defaulting to text.
func GetFormatFromEnv() Format {
	if format := os.Getenv("GATEWAY_LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	return FormatText
}
