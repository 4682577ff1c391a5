package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the service logger. Call sites attach order_id, order_number,
// reference, step and status so lines for one order can be joined.
func New(w io.Writer, json bool, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "checkout")
}

// Setup installs the logger as the process default.
func Setup(json bool, level string) *slog.Logger {
	l := New(os.Stdout, json, level)
	slog.SetDefault(l)
	return l
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
