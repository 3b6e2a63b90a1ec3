package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("warn", FormatJSON, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "lemma").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["stage"] != "lemma" || entry["message"] != "visible" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestInitLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		logger := InitLogger(tt.level, FormatJSON, &bytes.Buffer{})
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("InitLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestInitLoggerAutoNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", FormatAuto, &buf)
	logger.Info().Msg("hello")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output for a non-terminal writer, got %q", buf.String())
	}
}

func TestNewOpID(t *testing.T) {
	id := NewOpID("lemma")
	if !strings.HasPrefix(id, "lemma-") || len(id) != len("lemma-")+36 {
		t.Errorf("unexpected op id %q", id)
	}
	if NewOpID("") == NewOpID("") {
		t.Error("op ids must be unique")
	}
}
