package session

import (
	"fmt"
	"io"
	"os"

	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/rs/zerolog"
)

// LogFileName is the session log written next to the defaults file.
const LogFileName = "dogbone.log"

// Level maps the configured log level to zerolog. Notset only lets
// warnings and errors through.
func Level(l dogbone.LogLevel) zerolog.Level {
	switch l {
	case dogbone.LogDebug:
		return zerolog.DebugLevel
	case dogbone.LogInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.WarnLevel
	}
}

// NewLogger returns a timestamped logger writing to w at the level of l.
func NewLogger(w io.Writer, l dogbone.LogLevel) zerolog.Logger {
	return zerolog.New(w).Level(Level(l)).With().Timestamp().Logger()
}

// OpenLog truncates the log file at path and returns a logger writing to
// it. The returned closer closes the file.
func OpenLog(path string, l dogbone.LogLevel) (zerolog.Logger, io.Closer, error) {
	f, err := os.Create(path)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("session: open log: %w", err)
	}
	return NewLogger(f, l), f, nil
}
