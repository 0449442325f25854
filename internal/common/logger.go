package common

import (
	"log/slog"
	"os"
)

// Fields carries extra structured context for LogError.
type Fields map[string]any

// SetupLogger installs the process-wide slog handler. Format "json"
// selects JSON output for log shippers; anything else gets text.
func SetupLogger(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// LogError logs err at error level with the given fields attached.
func LogError(err error, msg string, fields Fields) {
	args := make([]any, 0, 2*len(fields)+2)
	args = append(args, "error", err)
	for k, v := range fields {
		args = append(args, k, v)
	}
	slog.Error(msg, args...)
}
