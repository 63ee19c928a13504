package log

import (
	"io"
	"log/slog"
)

// New creates the application logger writing to w.
// Verbose enables debug-level output; otherwise info and above.
// Attributes passing through the logger are masked per MaskingHandler.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskingHandler(handler))
}
