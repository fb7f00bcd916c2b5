package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestInfoWritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(os.Stdout, "json") })

	Info("job.created", map[string]any{"job_id": "abc", "bytes": 12})

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if payload["msg"] != "job.created" {
		t.Fatalf("expected msg job.created, got %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("expected level info, got %v", payload["level"])
	}
	if payload["job_id"] != "abc" {
		t.Fatalf("expected job_id abc, got %v", payload["job_id"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts field")
	}
}

func TestWarnAndErrorLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(os.Stdout, "json") })

	Warn("spool.cleanup_failed", nil)
	Error("stage.failed", map[string]any{"stage": "parse"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first, second map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if first["level"] != "warn" || second["level"] != "error" {
		t.Fatalf("unexpected levels: %v, %v", first["level"], second["level"])
	}
}
