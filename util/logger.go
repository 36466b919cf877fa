package util

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: JSON lines, or a human-readable console
// writer when running in development.
func NewLogger(appEnv string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
