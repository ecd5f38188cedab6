package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestCtx_CarriesTraceID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	t.Cleanup(func() { Init("info") })

	ctx := WithTrace(context.Background(), "abc-123")
	Ctx(ctx).Info().Msg("handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["trace_id"] != "abc-123" {
		t.Errorf("trace_id = %v, expected abc-123", entry["trace_id"])
	}
	if entry["service"] != "feedbackbot" {
		t.Errorf("service = %v, expected feedbackbot", entry["service"])
	}
}

func TestCtx_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", &buf)
	t.Cleanup(func() { Init("info") })

	Ctx(context.Background()).Info().Msg("filtered")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %q", buf.String())
	}
	Ctx(context.Background()).Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Error("warn line missing")
	}
}
