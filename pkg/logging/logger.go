// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// serviceName is stamped on every log line so feedcache's output is
// attributable when the host application shares the global logger.
const serviceName = "feedcache"

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp and service field
	logger := zerolog.New(output).With().Timestamp().Str("service", serviceName).Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name
// (e.g. "coordinator", "cache", "snapshot"). An empty component falls back
// to the service name.
func NewLogger(component string) zerolog.Logger {
	if component == "" {
		component = serviceName
	}
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Entry transitions (key, generation, status)
//   - Page appends and projection sizes
//   - Snapshot save/load activity
//
// Info: Normal operation events
//   - Auth epoch transitions
//   - Warm starts from persisted snapshots
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Late fetch completions dropped by the generation fence
//   - Exhaustion misreports (empty pages while metadata claims more)
//   - Snapshot errors (fallback to cold start)
//
// Error: Error conditions requiring attention
//   - Fetch failures surfaced to subscribers
//   - Configuration errors
//
// Context Fields:
//   - key: Cache key (resource, variant, auth epoch)
//   - resource: Registered resource name
//   - variant: Collection variant (tab, filter)
//   - gen: Entry generation at fetch issue time
//   - status: Entry status after a transition
//   - cursor: Page number or offset fetched
//   - error_class: Error classification (network, server, exhaustion_misreport)
//   - duration: Fetch duration
