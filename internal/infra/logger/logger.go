package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"datasweep/internal/infra/config"
)

// New builds a *slog.Logger from the logger config section. The
// returned closer must be deferred so file outputs are flushed; it is
// a no-op for stdout/stderr.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return slog.New(newHandler(w, cfg)), closer, nil
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(w io.Writer, cfg config.LoggerConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
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

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
