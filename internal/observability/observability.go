// Package observability configures the process-wide structured logger.
package observability

import (
	"fmt"
	"log/slog"
	"os"
)

// Instrument installs the process-wide slog handler: text for local
// development, JSON for production log aggregation. Called once at
// startup before any other component logs.
func Instrument(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
