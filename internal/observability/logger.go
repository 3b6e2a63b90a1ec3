package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Log output formats accepted by InitLogger.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// InitLogger builds the process logger. With FormatAuto the console writer
// is used when out is a terminal and JSON lines otherwise.
func InitLogger(level, format string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	pretty := false
	switch format {
	case FormatConsole:
		pretty = true
	case FormatJSON:
		pretty = false
	default:
		if f, ok := out.(*os.File); ok {
			pretty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(logLevel).With().Timestamp().Logger()
}

// NewOpID returns a fresh operation identifier for telemetry correlation.
func NewOpID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
