package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// These tests replace the process-wide default logger and must not run in parallel.

func TestNewAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)

	New("agent.router").Debug("handler registered")

	output := buf.String()
	if !strings.Contains(output, "component=agent.router") {
		t.Errorf("expected component attribute, got: %s", output)
	}
	if !strings.Contains(output, "handler registered") {
		t.Errorf("expected message, got: %s", output)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "json", &buf)

	New("store").Info("opened")

	output := buf.String()
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("expected JSON level field, got: %s", output)
	}
	if !strings.Contains(output, `"component":"store"`) {
		t.Errorf("expected JSON component field, got: %s", output)
	}
}

func TestInitLevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(ParseLevel("warn"), "text", &buf)

	slog.Info("suppressed")
	slog.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "suppressed") {
		t.Error("info should be suppressed at warn level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("warn should be written at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
