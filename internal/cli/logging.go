package cli

import (
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/datasynth/datasynth/internal/constants"
)

// stdLogger routes records through the log package, keeping its plain text format.
var stdLogger = slog.Default()

// SetVerbosity sets the level of the default logger from the count of -v flags.
func SetVerbosity(count int) {
	slog.SetLogLoggerLevel(Level(count))
}

// SetSlog installs the default logger. With jsonLogs, records are encoded as JSON lines to w,
// otherwise the plain text logger of the log package is restored, writing to stderr.
func SetSlog(w io.Writer, count int, jsonLogs bool) {
	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level(count)})))
		return
	}

	// A JSON default logger redirected the log package output to its handler.
	slog.SetDefault(stdLogger)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)
	SetVerbosity(count)
}

// Level maps a count of -v flags to a log level.
func Level(count int) slog.Level {
	switch {
	case count <= 0:
		return constants.DefaultLogLevel
	case count == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
