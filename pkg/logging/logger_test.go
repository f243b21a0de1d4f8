package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}

	logger2 := Default()
	if logger == logger2 {
		t.Error("Default() returned the same instance twice")
	}
}

func TestNewWithOptionsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Level: "info", Writer: &buf})
	logger.Info("hello", "session_id", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["session_id"] != "abc" {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestNewWithOptionsText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Format: "text", Writer: &buf})
	logger.Warn("careful")

	if !strings.Contains(buf.String(), "msg=careful") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Writer: &buf}).With("component", "triage")
	logger.Info("ready")

	if !strings.Contains(buf.String(), `"component":"triage"`) {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}

	var nilLogger *Logger
	if nilLogger.With("k", "v") == nil {
		t.Fatal("expected With on nil logger to return a usable logger")
	}
}
