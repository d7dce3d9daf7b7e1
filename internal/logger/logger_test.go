package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"uppercase debug", "DEBUG", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"info", "info", slog.LevelInfo},
		{"empty falls back to info", "", slog.LevelInfo},
		{"unknown falls back to info", "verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitWithWriterFiltersByLevel(t *testing.T) {
	// Messages below the configured level must be dropped; the helpers write
	// through the global Log once initialized.
	orig := Log
	defer func() { Log = orig }()

	var buf bytes.Buffer
	InitWithWriter("warn", &buf)

	Info("hidden message")
	Warn("visible message", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info message should be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "key=value") {
		t.Errorf("expected warn message with attributes, got %q", out)
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	// The helpers must be safe to call before Init (tests and library use).
	orig := Log
	defer func() { Log = orig }()
	Log = nil

	Debug("no-op")
	Info("no-op")
	Warn("no-op")
	Error("no-op")
}
