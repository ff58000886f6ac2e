// Package logging builds the server's zerolog logger and adapts it to courier.Logger.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/coregx/courier"
)

// Config holds logger configuration.
type Config struct {
	Level  string    // debug, info, warn, error (default: info)
	Format string    // json or console (default: json)
	Output io.Writer // default: os.Stderr
}

// New creates a zerolog logger writing JSON or console output at the configured level.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}
	return zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Adapter implements courier.Logger on top of zerolog.
type Adapter struct {
	log zerolog.Logger
}

var _ courier.Logger = (*Adapter)(nil)

// NewAdapter wraps log. component is attached to every entry.
func NewAdapter(log zerolog.Logger, component string) *Adapter {
	return &Adapter{log: log.With().Str("component", component).Logger()}
}

// Debugf logs at debug level.
func (a *Adapter) Debugf(format string, args ...interface{}) {
	a.log.Debug().Msgf(format, args...)
}

// Infof logs at info level.
func (a *Adapter) Infof(format string, args ...interface{}) {
	a.log.Info().Msgf(format, args...)
}

// Warnf logs at warn level.
func (a *Adapter) Warnf(format string, args ...interface{}) {
	a.log.Warn().Msgf(format, args...)
}

// Errorf logs at error level.
func (a *Adapter) Errorf(format string, args ...interface{}) {
	a.log.Error().Msgf(format, args...)
}

// Info logs a message at info level.
func (a *Adapter) Info(message string) {
	a.log.Info().Msg(message)
}

// RequestLogger logs one line per request with status, size and duration.
// Use after chi's RequestID middleware to include the request id.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				event := log.Info()
				if ww.Status() >= http.StatusInternalServerError {
					event = log.Error()
				}
				event.
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg(fmt.Sprintf("%s %s", r.Method, r.URL.Path))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
