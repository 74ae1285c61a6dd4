package agent

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	event := ConversationLogEvent{
		SessionID:  "sess-1",
		Channel:    ChannelHTTP,
		Direction:  DirectionOutbound,
		EventType:  "assistant_response",
		ContentRaw: "Print size: 26.6 × 24.0 cm",
	}
	logger.Log(event)

	path := filepath.Join(dir, "sess-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "Print size: 26.6 × 24.0 cm" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content == "" {
		t.Fatal("expected cleaned content to be populated")
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestConversationLoggerCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:    true,
		Dir:        dir,
		GlobalFile: global,
		QueueSize:  64,
	}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.Log(ConversationLogEvent{SessionID: "../escape", Direction: DirectionInbound, ContentRaw: "hi"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(ConversationLogEvent{SessionID: "late"})

	data, err := os.ReadFile(global)
	if err != nil {
		t.Fatalf("read global log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 10 {
		t.Fatalf("expected 10 lines in global log, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "_2E_2E_2Fescape.ndjson")); err != nil {
		t.Fatalf("expected sanitized per-session file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "late.ndjson")); !os.IsNotExist(err) {
		t.Fatalf("events after Close must be ignored, stat err=%v", err)
	}
}

func TestDisabledConversationLoggerIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{SessionID: "x"})
	if logger.Dropped() != 0 {
		t.Fatal("noop logger must not count drops")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain\x07"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if clean != "error plain" {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}

func TestConversationLoggerKeepsSimilarSessionsApart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	for _, id := range []string{"alice:1", "alice_1", "alice.1", "..", "."} {
		logger.Log(ConversationLogEvent{SessionID: id, Direction: DirectionInbound, ContentRaw: id})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected one file per session, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, safeFileName("alice:1")+".ndjson"))
	if err != nil {
		t.Fatalf("read session log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Fatalf("expected 1 line for alice:1, got %d", n)
	}
	if !strings.Contains(string(data), `"session_id":"alice:1"`) {
		t.Fatalf("unexpected log content: %s", data)
	}
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"3f2a-uuid": "3f2a-uuid",
		"alice:1":   "alice_3A1",
		"alice_1":   "alice_5F1",
		"..":        "_2E_2E",
		"":          "_",
	}
	for in, want := range tests {
		if got := safeFileName(in); got != want {
			t.Errorf("safeFileName(%q) = %q, want %q", in, got, want)
		}
	}

	long := safeFileName(strings.Repeat(".", 128))
	if !strings.HasPrefix(long, "~") || len(long) != 65 {
		t.Errorf("long ID should map to a digest name, got %q", long)
	}
	if long == safeFileName(strings.Repeat(".", 127)) {
		t.Error("distinct long IDs share a file name")
	}
}
