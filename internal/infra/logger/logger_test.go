package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datasweep/internal/infra/config"
)

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasweep.log")
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("hello", "key", "value")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("log output missing message: %s", out)
	}
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("log output missing attribute: %s", out)
	}
}

func TestNewStderrNoopCloser(t *testing.T) {
	_, closer, err := New(config.LoggerConfig{Output: "stderr"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := closer(); err != nil {
		t.Errorf("closer: %v", err)
	}
}

func TestNewBadOutputPath(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	log, closer, err := New(config.LoggerConfig{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("dropped")
	log.Warn("kept")
	closer()

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("info record passed a warn-level logger")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	if log == nil {
		t.Fatal("Discard returned nil")
	}
	log.Error("goes nowhere")
}
