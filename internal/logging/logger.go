package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels accepted in the logging.level setting
var Levels = []string{"trace", "debug", "info", "warn", "error", "off"}

// Config holds logger configuration
type Config struct {
	Level   string
	LogFile string
	NoColor bool
	// Console receives human-readable output; nil means stderr
	Console io.Writer
}

// NewLogger creates a new zerolog logger with dual output (console + rotated file)
func NewLogger(cfg Config) *zerolog.Logger {
	// Enable stack trace marshaling
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := parseLevel(cfg.Level)

	out := cfg.Console
	if out == nil {
		out = os.Stderr
	}

	// Console writer (colored output for TTY)
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    cfg.NoColor,
	}

	writers := []io.Writer{consoleWriter}

	// File logger if path provided
	if cfg.LogFile != "" && level != zerolog.Disabled {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &logger
}

// ValidLevel reports whether level is one of Levels
func ValidLevel(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return level == "warning"
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewTestLogger creates a logger for testing that writes to a buffer
func NewTestLogger(w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}
