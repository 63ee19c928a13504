package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestMaskingHandler tests credential masking in log output.
func TestMaskingHandler(t *testing.T) {
	t.Parallel()

	t.Run("masks sensitive keys", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, false)

		logger.Info("request sent",
			"url", "https://docs.example.com/a",
			"authorization", "Bearer abc123",
			"cookie", "session=xyz",
		)

		out := buf.String()
		if strings.Contains(out, "abc123") || strings.Contains(out, "session=xyz") {
			t.Errorf("sensitive values leaked: %s", out)
		}
		if !strings.Contains(out, MaskValue) {
			t.Errorf("expected mask value in output: %s", out)
		}
		if !strings.Contains(out, "https://docs.example.com/a") {
			t.Errorf("non-sensitive attribute should pass through: %s", out)
		}
	})

	t.Run("masks within groups", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, false)

		logger.Info("request sent", slog.Group("headers", "Authorization", "Bearer abc123"))

		if strings.Contains(buf.String(), "abc123") {
			t.Errorf("grouped sensitive value leaked: %s", buf.String())
		}
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		New(&buf, true).Debug("debugging")
		if !strings.Contains(buf.String(), "debugging") {
			t.Error("debug log should appear in verbose mode")
		}

		buf.Reset()
		New(&buf, false).Debug("debugging")
		if buf.Len() != 0 {
			t.Error("debug log should be suppressed without verbose")
		}
	})
}
