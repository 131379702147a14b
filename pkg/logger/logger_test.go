package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestComponentTagAndFields(t *testing.T) {
	buf := capture(t)
	InfoCF("store", "merge complete", map[string]any{"channel": "general", "accepted": 3})

	line := buf.String()
	if !strings.Contains(line, "[INFO] [store] merge complete") {
		t.Errorf("line = %q", line)
	}
	// Fields render sorted by key.
	if !strings.Contains(line, "accepted=3 channel=general") {
		t.Errorf("fields not sorted: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)

	SetLevel(WARN)
	InfoC("health", "suppressed")
	DebugC("health", "suppressed")
	WarnC("health", "visible")

	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("sub-threshold lines written: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[WARN] [health] visible") {
		t.Errorf("warn line missing: %q", buf.String())
	}
}

func TestDebugEnabled(t *testing.T) {
	buf := capture(t)
	SetLevel(DEBUG)
	DebugCF("transport", "frame", map[string]any{"type": "ack"})

	if !strings.Contains(buf.String(), "[DEBUG] [transport] frame type=ack") {
		t.Errorf("debug line = %q", buf.String())
	}
}
