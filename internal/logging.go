package internal

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mama165/sdk-go/logs"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the process logger from LOG_LEVEL.
// With a LOG_FILE, records are also written there as JSON.
// The returned func closes the file.
func NewLogger(level, file string) (*slog.Logger, func() error) {
	logger := logs.GetLoggerFromString(level)
	if file == "" {
		return logger, func() error { return nil }
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Error("Failed to open log file, using stderr only", "error", err, "file", file)
		return logger, func() error { return nil }
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(slogmulti.Fanout(logger.Handler(), fileHandler)), f.Close
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}
