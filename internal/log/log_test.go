package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{})

		logger.Info("hello", "key", "value")

		got := buf.String()
		if !strings.Contains(got, "hello") || !strings.Contains(got, "key=value") {
			t.Errorf("unexpected text output: %q", got)
		}
	})

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{JSON: true})

		logger.Info("hello")

		got := buf.String()
		if !strings.Contains(got, `"msg":"hello"`) {
			t.Errorf("unexpected json output: %q", got)
		}
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Info("filtered")
		logger.Warn("kept")

		got := buf.String()
		if strings.Contains(got, "filtered") {
			t.Errorf("info message should be filtered at warn level: %q", got)
		}
		if !strings.Contains(got, "kept") {
			t.Errorf("warn message missing: %q", got)
		}
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop() returned nil")
	}
	// Must not panic.
	logger.Info("discarded")
}
