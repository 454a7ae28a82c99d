package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.Info("hello", map[string]interface{}{"host": "1.1.1.1"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["message"] != "hello" {
		t.Fatalf("unexpected message: %v", entries[0]["message"])
	}
	if entries[0]["level"] != "info" {
		t.Fatalf("unexpected level: %v", entries[0]["level"])
	}
	if entries[0]["host"] != "1.1.1.1" {
		t.Fatalf("expected host field, got %v", entries[0])
	}
	if _, ok := entries[0]["timestamp"]; !ok {
		t.Fatalf("expected timestamp field, got %v", entries[0])
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn)
	logger.SetOutput(&buf)

	logger.Debug("dropped", nil)
	logger.Info("dropped", nil)
	logger.Warn("kept", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "kept" {
		t.Fatalf("expected only the warn entry, got %v", entries)
	}
	if logger.Enabled(LevelInfo) {
		t.Fatalf("info should be disabled at warn level")
	}
}

func TestLogProbeResult(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug)
	logger.SetOutput(&buf)

	logger.LogProbeResult("1.1.1.1", true, 12.5, 40*time.Millisecond, nil)
	logger.LogProbeResult("1.1.1.1", false, 0, 3*time.Second, errors.New("timed out"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["latency_ms"] != 12.5 {
		t.Fatalf("expected latency_ms 12.5, got %v", entries[0]["latency_ms"])
	}
	if entries[1]["level"] != "warning" || entries[1]["error"] != "timed out" {
		t.Fatalf("unexpected failure entry: %v", entries[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
