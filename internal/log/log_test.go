package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, "json", &buf)

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{"debug line", "info line", "warn line", "error line", "boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "json", &buf)

	Debug("suppressed")
	Info("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("debug line emitted at info level:\n%s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("info line missing:\n%s", out)
	}
}

func TestKVPairs(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "json", &buf)

	Info("kv test",
		"name", "jigdule",
		"count", 3,
		"ok", true,
		"elapsed", 250*time.Millisecond,
		"cause", errors.New("nope"),
	)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not one JSON line: %v\n%s", err, buf.String())
	}
	if line["name"] != "jigdule" {
		t.Fatalf("name = %v", line["name"])
	}
	if line["count"] != float64(3) {
		t.Fatalf("count = %v", line["count"])
	}
	if line["ok"] != true {
		t.Fatalf("ok = %v", line["ok"])
	}
	if line["cause"] != "nope" {
		t.Fatalf("cause = %v", line["cause"])
	}
}

func TestKVPairs_SkipsMalformed(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "json", &buf)

	// Non-string key and a trailing odd value are dropped, not panicked on.
	Info("malformed kv", 42, "value", "dangling")

	if !strings.Contains(buf.String(), "malformed kv") {
		t.Fatalf("message missing:\n%s", buf.String())
	}
}
