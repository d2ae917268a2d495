package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. Every record carries the
// service name so aggregated logs can be filtered per node.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", "accredo")
}
