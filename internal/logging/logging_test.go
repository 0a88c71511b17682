package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{" warn ", log.WarnLevel},
		{"", log.InfoLevel},
		{"chatty", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesTextToOut(t *testing.T) {
	t.Setenv("TB_DEBUG", "")
	var buf bytes.Buffer
	logger, closer := New(Options{Level: "warn", Out: &buf})
	defer closer.Close()

	logger.Info("hidden")
	logger.WithField("task", "m1").Warn("board.move")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "board.move") || !strings.Contains(out, "task=m1") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDebugEnvOverridesLevel(t *testing.T) {
	t.Setenv("TB_DEBUG", "true")
	var buf bytes.Buffer
	logger, _ := New(Options{Level: "error", Out: &buf})
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v, want debug", logger.GetLevel())
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	t.Setenv("TB_DEBUG", "")
	path := filepath.Join(t.TempDir(), "tb.log")
	logger, closer := New(Options{File: path})
	logger.WithField("id", "n-1").Info("notify.push")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"notify.push"`) || !strings.Contains(string(data), `"id":"n-1"`) {
		t.Fatalf("unexpected log file %s", data)
	}
}
