package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "loginzap.jsonl")
	logger, closer, err := New(path, slog.LevelInfo)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("webhook delivered", "status", 200)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if entry["msg"] != "webhook delivered" || entry["status"] != float64(200) {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestNewAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.jsonl")
	for i := 0; i < 2; i++ {
		logger, closer, err := New(path, slog.LevelInfo)
		if err != nil {
			t.Fatalf("new logger: %v", err)
		}
		logger.Info("start")
		closer.Close()
	}
	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("expected 2 appended lines, got %d", got)
	}
}

func TestNewStdout(t *testing.T) {
	_, closer, err := New("-", slog.LevelInfo)
	if err != nil {
		t.Fatalf("stdout logger: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close stdout logger: %v", err)
	}
}
