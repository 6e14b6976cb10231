package logger

import (
	"io"
	"log/slog"
)

// NewLogger writes text records to w at Info, or Debug when debug is set
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler)

	slog.SetDefault(logger)
	return logger
}

// Discard drops every record. The terminal browser uses it when no log file is given
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
