package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNewWithWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "standardize").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatal(err)
	}
	if entry["stage"] != "standardize" || entry["message"] != "visible" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")
	ctx := WithContext(context.Background(), logger)

	l := FromContext(ctx)
	l.Debug().Msg("from context")
	if buf.Len() == 0 {
		t.Fatal("expected output from context logger")
	}

	nop := FromContext(context.Background())
	nop.Error().Msg("dropped")
}
