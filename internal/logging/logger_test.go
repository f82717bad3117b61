package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrettyHandlerComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	NewComponentLogger(logger, "renderer").Info("segment done", Int("index", 3))

	line := buf.String()
	if !strings.Contains(line, " INFO renderer: segment done") {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.Contains(line, "index=3") {
		t.Fatalf("missing attr in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be a prefix, not an attr: %q", line)
	}
}

func TestPrettyHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("probe", String("path", "/media/My Talk.mp4"))
	if !strings.Contains(buf.String(), `path="/media/My Talk.mp4"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN shown") {
		t.Fatalf("warn missing: %q", buf.String())
	}
}

func TestJSONHandlerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("analysis finished", String(FieldProject, "abc"), Float64(FieldPercent, 50))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if payload["msg"] != "analysis finished" {
		t.Fatalf("msg = %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("level = %v", payload["level"])
	}
	if payload["project_id"] != "abc" {
		t.Fatalf("project_id = %v", payload["project_id"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatal("missing ts")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens", Error(nil))
}
