// Package logger builds the process *slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"personal/cheesebot/src/config"
)

// New creates a logger writing to stderr and, when cfg.File is set, to that file.
// The returned closer should be deferred to close the file.
func New(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	return newLogger(os.Stderr, cfg)
}

func newLogger(terminal io.Writer, cfg config.LogConfig) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(terminal, cfg.File)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput tees terminal into the log file, opened for append.
func openOutput(terminal io.Writer, file string) (io.Writer, func() error, error) {
	if file == "" {
		return terminal, func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(terminal, f), f.Close, nil
}
