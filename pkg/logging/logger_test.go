package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNewWithOptions_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("analysis started", "analysis_id", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "analysis started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}

func TestNewWithOptions_TextFormatFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Fatalf("expected text handler output, got %q", out)
	}
}

func TestNewWithOptions_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.log")
	var buf bytes.Buffer
	logger, err := NewWithOptions(Options{Writer: &buf, File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("ready to analyze")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "ready to analyze") || !strings.Contains(buf.String(), "ready to analyze") {
		t.Fatalf("expected line in both outputs; file=%q stream=%q", data, buf.String())
	}
}

func TestNewWithOptions_BadFileStillReturnsLogger(t *testing.T) {
	logger, err := NewWithOptions(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Fatal("expected error for unopenable file")
	}
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected usable fallback logger")
	}
}

func TestNilLoggerClose(t *testing.T) {
	var l *Logger
	if err := l.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if err := Discard().Close(); err != nil {
		t.Fatalf("discard close: %v", err)
	}
}
