package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Audit-style log lines
// carry log_type=audit attributes; everything else is operational logging.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
