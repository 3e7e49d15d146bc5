// Package logging configures the global zerolog logger used across the
// t3 packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace also logs SQL statements and retry internals.
	LevelTrace LogLevel = "trace"

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
	Level LogLevel `validate:"omitempty,oneof=trace debug info warn warning error"`

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is attached to every event when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup validates cfg and installs the resulting logger as the global
// zerolog logger.
func Setup(cfg Config) (zerolog.Logger, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return zerolog.Nop(), fmt.Errorf("logger config validation error: %w", err)
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Trace: SQL statements, retryablehttp internals
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, TTL)
//   - Individual page fetches and request IDs
//   - Proxy selection
//
// Info: Normal operation events
//   - Authentication success
//   - Collection load start/complete, progress every 50 pages
//   - Export written
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts and exhausted retries
//   - Cache errors (fallback to direct request)
//   - Failed collection loads
//
// Error: Error conditions requiring attention
//   - Transport failures after retries
//   - Metrics server failures
//
// Context Fields:
//   - component: Emitting package (t3-client, pgstore, pgx)
//   - endpoint: T3 endpoint path
//   - collection: Collection label of a load
//   - page / total_pages / fetched: Pagination progress
//   - status_code: HTTP status code
//   - error_class: Error classification (client, auth, server, rate_limit, network)
//   - request_id: X-Request-ID sent with the request
//   - strategy: Loader strategy (pool, batched)
