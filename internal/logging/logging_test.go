package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{"info", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHasFmtVerb(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"plain message", false},
		{"value is %d", true},
		{"100%% done", false},
		{"name %s", true},
		{"trailing %", false},
	}
	for _, tt := range tests {
		if got := hasFmtVerb(tt.in); got != tt.want {
			t.Errorf("hasFmtVerb(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutputWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: LevelDebug, Output: &buf})
	defer Init(nil)

	L_info("dispatch", "command", "ping")
	out := buf.String()
	if !strings.Contains(out, `"msg":"dispatch"`) {
		t.Fatalf("expected JSON line, got %q", out)
	}
	if !strings.Contains(out, `"command":"ping"`) {
		t.Fatalf("expected structured key, got %q", out)
	}
}

func TestTraceGated(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: LevelDebug, Output: &buf})
	defer Init(nil)

	L_trace("hidden")
	if buf.Len() != 0 {
		t.Fatalf("trace should be dropped at debug level, got %q", buf.String())
	}

	SetLevel(LevelTrace)
	L_trace("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("trace should be logged at trace level, got %q", buf.String())
	}
}
