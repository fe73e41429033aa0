package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/johnwmail/pastelite/internal/config"
)

// SetupLogging builds the process logger. A log file gets JSON records,
// otherwise text goes to stderr. The returned closer releases the file.
func SetupLogging(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(file, opts)), file, nil
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
}

// nopCloser stands in when logs go to stderr
type nopCloser struct{}

func (nopCloser) Close() error { return nil }
