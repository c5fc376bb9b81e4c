package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// SlogLevel parses Level. An empty level is info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// OutputFormat returns the normalised format, defaulting to text.
func (l LogConfig) OutputFormat() (string, error) {
	switch f := strings.ToLower(l.Format); f {
	case "", LogFormatText:
		return LogFormatText, nil
	case LogFormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("config: log.format must be %q or %q, got %q", LogFormatText, LogFormatJSON, l.Format)
	}
}
