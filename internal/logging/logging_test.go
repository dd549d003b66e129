package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=\"test message\"", "key=value"}},
		{"json", []string{`"msg":"test message"`, `"key":"value"`}},
		{"TEXT", []string{"key=value"}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		NewLoggerWithWriter(slog.LevelInfo, tt.format, &buf).Info("test message", "key", "value")
		for _, w := range tt.want {
			if !strings.Contains(buf.String(), w) {
				t.Errorf("format %s: expected %q in %s", tt.format, w, buf.String())
			}
		}
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	if strings.Contains(buf.String(), "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("WARN message missing, got: %s", buf.String())
	}
}

func TestNewLoggerWithWriter_Redacts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "text", &buf).With("component", "api")

	logger.Debug("login", "email", "u@example.com", "password", "hunter2", "session_token", "abc")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "abc") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "password=[redacted]") || !strings.Contains(out, "email=u@example.com") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "component=api") {
		t.Errorf("child attributes missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestValidFormat(t *testing.T) {
	if !ValidFormat("json") || !ValidFormat("Text") || ValidFormat("xml") {
		t.Error("ValidFormat mismatch")
	}
}
