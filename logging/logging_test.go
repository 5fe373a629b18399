package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestDefaultLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf).WithFields(Fields{"component": "synth"})

	log.Info("rendered", Fields{"notes": 12})
	log.Error(errors.New("boom"), "failed")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["component"] != "synth" {
		t.Errorf("component = %v, want synth", lines[0]["component"])
	}
	if lines[0]["notes"] != float64(12) {
		t.Errorf("notes = %v, want 12", lines[0]["notes"])
	}
	if lines[0]["message"] != "rendered" {
		t.Errorf("message = %v, want rendered", lines[0]["message"])
	}
	if lines[1]["error"] != "boom" {
		t.Errorf("error = %v, want boom", lines[1]["error"])
	}
	if lines[1]["level"] != "error" {
		t.Errorf("level = %v, want error", lines[1]["level"])
	}
}

func TestDefaultLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf)
	log.SetLevel(WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["message"] != "shown" {
		t.Errorf("message = %v, want shown", lines[0]["message"])
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf)
	ctx := ContextWithFields(context.Background(), Fields{"batch": 3})

	log.WithContext(ctx).Info("produced")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["batch"] != float64(3) {
		t.Errorf("context fields not applied: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"", InfoLevel, true},
		{"verbose", InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOrFallsBackToGlobal(t *testing.T) {
	if Or(nil) != GetGlobalLogger() {
		t.Error("Or(nil) should return the global logger")
	}
	noop := &NoOpLogger{}
	if Or(noop) != noop {
		t.Error("Or should return the given logger")
	}
}
