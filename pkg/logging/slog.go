package logging

import (
	"log/slog"
	"os"
)

// New builds the JSON logger shared by all components.
func New(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h)
}
