package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to stderr at stderrLevel,
// JSON to file at level. Returns the logger and a cleanup function to close
// the file.
func SetupLogger(logFile string, level, stderrLevel slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: stderrLevel,
	})

	file, err := openLogFile(logFile)
	if err != nil {
		// Fall back to stderr-only if file fails
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))

	return logger, file.Close
}

// SetupFileLogger creates a JSON logger that writes only to the log file.
// Used while a full-screen terminal UI owns stderr.
func SetupFileLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	file, err := openLogFile(logFile)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}
	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})), file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
