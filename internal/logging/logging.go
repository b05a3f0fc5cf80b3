package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration
type Config struct {
	Level        string `yaml:"level" json:"level"`
	Format       string `yaml:"format" json:"format"` // "json" or "console"
	File         string `yaml:"file" json:"file"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"`
}

const defaultRotationDays = 30

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:        "info",
		Format:       "console",
		RotationDays: defaultRotationDays,
	}
}

// ApplyEnv overrides cfg from the environment
// FSGUARD_LOG_LEVEL: trace, debug, info, warn, error
// FSGUARD_LOG_FORMAT: json, console
func ApplyEnv(cfg Config) Config {
	if level := os.Getenv("FSGUARD_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("FSGUARD_LOG_FORMAT"); format == "json" || format == "console" {
		cfg.Format = format
	}
	return cfg
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a zerolog logger writing to stderr and, when cfg.File is
// set, to that file as JSON. The file is rotated once it is older than
// RotationDays. The returned closer releases the file.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	var console io.Writer = os.Stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	build := func(w io.Writer) zerolog.Logger {
		return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	}

	if cfg.File == "" {
		return build(console), nopCloser{}
	}

	rotationDays := cfg.RotationDays
	if rotationDays <= 0 {
		rotationDays = defaultRotationDays
	}

	logger := build(console)
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", filepath.Dir(cfg.File)).Msg("failed to ensure log directory")
		return logger, nopCloser{}
	}

	rotateLogsIfNeeded(logger, cfg.File, rotationDays)

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.File).Msg("failed to open log file")
		return logger, nopCloser{}
	}

	return build(zerolog.MultiLevelWriter(console, f)), f
}

// rotateLogsIfNeeded rotates the log file once it is older than rotationDays
func rotateLogsIfNeeded(logger zerolog.Logger, logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		logger.Warn().Err(err).Msg("failed to rotate log file")
		return
	}

	cleanupOldLogs(logger, logPath, rotationDays)
}

// cleanupOldLogs removes rotated log files older than rotationDays
func cleanupOldLogs(logger zerolog.Logger, logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				logger.Warn().Err(err).Str("file", fullPath).Msg("failed to remove old log file")
			}
		}
	}
}
