package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "meetingbot.log")
	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("session started", String(FieldPlatform, "google"), Int64(FieldBotID, 42))

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "session started" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record[FieldPlatform] != "google" {
		t.Fatalf("platform = %v", record[FieldPlatform])
	}
	if record[FieldBotID] != float64(42) {
		t.Fatalf("bot_id = %v", record[FieldBotID])
	}
}

func TestNewHonorsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetingbot.log")
	logger, err := New(Options{Level: "error", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("filtered out")
	logger.Error("kept")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "filtered out") {
		t.Fatal("info record should be filtered at error level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Fatal("error record missing")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		" WARN ":  slog.LevelWarn,
		"unknown": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != "error" {
		t.Fatalf("key = %s", attr.Key)
	}
	nilAttr := Error(nil)
	if nilAttr.Value.String() != "<nil>" {
		t.Fatalf("nil error value = %s", nilAttr.Value.String())
	}
}

func TestConsoleHandlerRendersAttrsWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	handler := newConsoleHandler(&buf, levelVar)
	logger := slog.New(handler).With(String(FieldComponent, "roster"))

	logger.Warn("sink full", Int("dropped", 1))

	line := buf.String()
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("non-terminal output must not carry ANSI codes: %q", line)
	}
	for _, want := range []string{"WARN", "sink full", "component=roster", "dropped=1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestConsoleHandlerGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	handler := newConsoleHandler(&buf, new(slog.LevelVar))
	logger := slog.New(handler).WithGroup("meeting")

	logger.Info("joined", String("platform", "teams"))

	if !strings.Contains(buf.String(), "meeting.platform=teams") {
		t.Fatalf("grouped key missing: %q", buf.String())
	}
}

func TestNewNopDiscardsEverything(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled at every level")
	}
}
