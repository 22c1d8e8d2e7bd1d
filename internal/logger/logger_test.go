package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		expected zerolog.Level
	}{
		{name: "development default", env: "development", expected: zerolog.DebugLevel},
		{name: "empty env default", env: "", expected: zerolog.DebugLevel},
		{name: "production default", env: "production", expected: zerolog.InfoLevel},
		{name: "explicit level", env: "production", level: "WARN", expected: zerolog.WarnLevel},
		{name: "unknown level falls back", env: "production", level: "loud", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.env, tt.level); got != tt.expected {
				t.Errorf("parseLevel(%q, %q) = %v, want %v", tt.env, tt.level, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriterWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "")

	log.Debug().Msg("hidden")
	log.Info().Str("plate", "أب1234").Msg("validated")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["plate"] != "أب1234" {
		t.Errorf("plate = %v", entry["plate"])
	}
	if entry["message"] != "validated" {
		t.Errorf("message = %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp field")
	}
}
