package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"0":     LogLevelNone,
		"error": LogLevelError,
		"WARN":  LogLevelWarning,
		"3":     LogLevelInfo,
		"":      LogLevelInfo,
		"debug": LogLevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("Expected warning line, got %q", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("Expected error line, got %q", out)
	}
}

func TestWithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(log.New(&buf, "", 0), LogLevelInfo).WithTag("controller")

	l.Infof("started")
	l.Warnf("slow")

	out := buf.String()
	if !strings.Contains(out, "[controller] started") {
		t.Errorf("Expected tagged info line, got %q", out)
	}
	if !strings.Contains(out, "[controller] WARN: slow") {
		t.Errorf("Expected tagged warning line, got %q", out)
	}
}
