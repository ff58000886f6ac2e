package courier

import (
	"fmt"
	"strings"
)

// Logger defines the logging interface required by the courier library.
// Implement this interface to plug in your logging system.
//
// Example implementation backed by zerolog:
//
//	type ZerologLogger struct {
//	    log zerolog.Logger
//	}
//
//	func (l *ZerologLogger) Infof(format string, args ...interface{}) {
//	    l.log.Info().Msgf(format, args...)
//	}
type Logger interface {
	// Debugf logs debug-level messages with printf-style formatting.
	Debugf(format string, args ...interface{})

	// Infof logs info-level messages with printf-style formatting.
	Infof(format string, args ...interface{})

	// Warnf logs warning-level messages with printf-style formatting.
	Warnf(format string, args ...interface{})

	// Errorf logs error-level messages with printf-style formatting.
	Errorf(format string, args ...interface{})

	// Info logs info-level messages without formatting.
	Info(message string)
}

// NoopLogger is a no-operation logger implementation useful for testing
// or when logging is not desired. All methods are no-ops.
type NoopLogger struct{}

// Debugf implements Logger.Debugf as a no-op.
func (l *NoopLogger) Debugf(_ string, _ ...interface{}) {}

// Infof implements Logger.Infof as a no-op.
func (l *NoopLogger) Infof(_ string, _ ...interface{}) {}

// Warnf implements Logger.Warnf as a no-op.
func (l *NoopLogger) Warnf(_ string, _ ...interface{}) {}

// Errorf implements Logger.Errorf as a no-op.
func (l *NoopLogger) Errorf(_ string, _ ...interface{}) {}

// Info implements Logger.Info as a no-op.
func (l *NoopLogger) Info(_ string) {}

// formatCause renders err and its causes as "outer <- inner <- root".
func formatCause(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(CauseChain(err), " <- ")
}

// logSkip logs a recipient that is skipped together with the full cause chain.
func logSkip(logger Logger, warn bool, err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if warn {
		logger.Warnf("%s: error.message=%q error.cause_chain=%q", msg, err.Error(), formatCause(err))
		return
	}
	logger.Errorf("%s: error.message=%q error.cause_chain=%q", msg, err.Error(), formatCause(err))
}
