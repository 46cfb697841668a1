/**
 * @description
 * Structured logger construction shared by the HTTP server, the scheduler
 * and the event consumers.
 */
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger in development and a JSON logger otherwise.
func New(env string) zerolog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if isDevelopment(env) {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "commission-service").
		Logger()
}

func isDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// PrintfAdapter lets libraries that expect a Printf logger write through zerolog.
type PrintfAdapter struct {
	Logger zerolog.Logger
}

func (a PrintfAdapter) Printf(format string, args ...interface{}) {
	a.Logger.Info().Msgf(format, args...)
}
