// Package logging configures the process-wide zerolog logger and carries
// request-scoped loggers through contexts.
//
// Levels used across the service:
//
//	debug  cache hits, misses and slot lifecycle; outbound attempts; SQL statements
//	info   startup, shutdown, migrations, cache connections opened
//	warn   outbound retries, slow queries, rate-limited clients, a missing API key
//	error  requests failing with 5xx, exhausted retries, Redis reconnects giving up
//
// Every entry emitted while serving a request carries trace_id, the value
// echoed in the X-Request-Id header. Packages tag their loggers with a
// component name (cache, http-client, notify, server, user).
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as accepted from flags and configuration.
type LogLevel string

// Accepted level names. Anything else falls back to LevelInfo.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// TraceIDField is the log field carrying the request trace id.
const TraceIDField = "trace_id"

// Config selects the level and output format.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global logger and returns it. Contexts without a
// logger of their own resolve to it as well.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger

	return logger
}

func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(string(level)))
	if name == "warning" {
		return zerolog.WarnLevel
	}
	switch l, err := zerolog.ParseLevel(name); {
	case err != nil, name == "":
		return zerolog.InfoLevel
	case l < zerolog.DebugLevel || l > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return l
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithTraceID returns a context carrying a logger annotated with the trace id.
// The logger is derived from the one already attached to ctx, or the global
// logger when there is none.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	logger := Ctx(ctx).With().Str(TraceIDField, traceID).Logger()
	return logger.WithContext(ctx)
}

// Ctx returns the logger attached to ctx, falling back to the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
