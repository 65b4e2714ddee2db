package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestSlogLoggerUpdateLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(newJSONLogger(&buf))

	logger.LogUpdate(UpdateLogEvent{Revision: 1, SnapshotID: "snap-1", Changed: []string{"a"}, Notified: 2})
	logger.LogUpdate(UpdateLogEvent{Revision: 2, ActivityErr: errors.New("sink down")})
	logger.LogUpdate(UpdateLogEvent{Revision: 2, Err: errors.New("boom")})

	entries := decodeLogLines(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(entries))
	}
	wantLevels := []string{"DEBUG", "WARN", "ERROR"}
	for i, entry := range entries {
		if entry["msg"] != "store.update" {
			t.Fatalf("unexpected message %v", entry["msg"])
		}
		if entry["level"] != wantLevels[i] {
			t.Fatalf("line %d: expected level %s, got %v", i, wantLevels[i], entry["level"])
		}
	}
	if entries[0]["snapshot_id"] != "snap-1" || entries[0]["notified"] != float64(2) {
		t.Fatalf("unexpected attributes %v", entries[0])
	}
	if entries[1]["activity_error"] != "sink down" || entries[2]["error"] != "boom" {
		t.Fatalf("expected error attributes, got %v and %v", entries[1], entries[2])
	}
}

func TestSlogLoggerWiredThroughStore(t *testing.T) {
	var buf bytes.Buffer
	s := New(map[string]any{"count": 1}, WithLogger(NewSlogLogger(newJSONLogger(&buf))))
	if _, err := s.SubscribeWhen(Key("count"), "value > 0", func(any) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := s.Update(func(d *Draft) error { return d.Set(Key("count"), 2) }); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries := decodeLogLines(t, &buf)
	var sawUpdate, sawEvaluate bool
	for _, entry := range entries {
		switch entry["msg"] {
		case "store.update":
			sawUpdate = true
		case "store.evaluate":
			sawEvaluate = entry["engine"] == "expr" && entry["path"] == "count"
		}
	}
	if !sawUpdate || !sawEvaluate {
		t.Fatalf("expected update and evaluation entries, got %v", entries)
	}
}

func TestWithLoggerNilFallsBackToNoop(t *testing.T) {
	s := New(nil, WithLogger(nil), WithEvaluatorLogger(nil))
	if _, err := s.Update(func(d *Draft) error { return d.Set(Key("a"), 1) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Evaluate("a == 1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
}

func TestNewSlogLoggerDefaults(t *testing.T) {
	if NewSlogLogger(nil).logger == nil {
		t.Fatalf("expected slog.Default fallback")
	}
	var nilLogger *SlogLogger
	nilLogger.LogUpdate(UpdateLogEvent{})
}
