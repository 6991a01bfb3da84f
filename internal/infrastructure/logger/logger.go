// Package logger builds the process-wide zerolog.Logger, the ambient
// logging stack every other package writes through.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Setup configures zerolog's global level and returns a structured JSON
// logger writing to stdout with a timestamp and the "agentflow" service tag.
func Setup(level string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))
	l := zerolog.New(os.Stdout).With().Timestamp().Str("service", "agentflow").Logger()
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a default info-level logger, for callers that don't need a
// configured level (tests, one-off tools).
func Logger() zerolog.Logger {
	return Setup("info")
}
