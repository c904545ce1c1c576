package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "chatd.log")

	logger, err := New(logPath, ":5000", false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("server started")
	logger.Debug("hidden at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "server started" {
		t.Errorf("msg = %v, want server started", entry["msg"])
	}
	if entry["instance"] != ":5000" {
		t.Errorf("instance = %v, want :5000", entry["instance"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("entry missing ts field")
	}
}

func TestNewDebugLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "chatd.log")

	logger, err := New(logPath, "test", true)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("visible")
	_ = logger.Sync()

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "visible") {
		t.Errorf("debug entry missing from %q", data)
	}
}
