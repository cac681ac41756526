package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerJSONLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: LogFormatJSON, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("hidden")
	logger.WithField("step", "pull").Info("pulled %d bytes", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["message"] != "pulled 42 bytes" || entry["step"] != "pull" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	logger.SetLevel(LogLevelDebug)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug not emitted after SetLevel: %q", buf.String())
	}
}

func TestLoggerFormatsArgumentsOnce(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: LogFormatJSON, Output: &buf})
	logger.Info("running %s", "stat -c %s")
	if !strings.Contains(buf.String(), "running stat -c %s") {
		t.Errorf("message mangled: %q", buf.String())
	}
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "apkx.log")
	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf, FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	logger.Warn("disk almost full")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"disk almost full"`) {
		t.Errorf("file content = %q", data)
	}
	if !strings.Contains(buf.String(), "disk almost full") {
		t.Errorf("console content = %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"WARNING": LogLevelWarn,
		"error":   LogLevelError,
		"":        LogLevelInfo,
		"bogus":   LogLevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ParseLogFormat("JSON") != LogFormatJSON || ParseLogFormat("x") != LogFormatText {
		t.Error("ParseLogFormat mismatch")
	}
}
