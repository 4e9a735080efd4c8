package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)

	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("Expected minLevel to be %s, got %s", LevelInfo, logger.minLevel)
	}
}

func TestLogger_ShouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logLevel Level
		want     bool
	}{
		{"debug logs when min is debug", LevelDebug, LevelDebug, true},
		{"info logs when min is debug", LevelDebug, LevelInfo, true},
		{"error logs when min is debug", LevelDebug, LevelError, true},
		{"debug does not log when min is info", LevelInfo, LevelDebug, false},
		{"info logs when min is info", LevelInfo, LevelInfo, true},
		{"warn logs when min is info", LevelInfo, LevelWarn, true},
		{"info does not log when min is error", LevelError, LevelInfo, false},
		{"error logs when min is error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.minLevel)
			got := logger.shouldLog(tt.logLevel)
			if got != tt.want {
				t.Errorf("shouldLog() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_Log_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelInfo, FormatJSON, &buf)

	logger.Log(LevelInfo, "test.event", "Test message", map[string]interface{}{
		"key": "value",
		"num": 42,
	})

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if event.Level != LevelInfo {
		t.Errorf("Expected level %s, got %s", LevelInfo, event.Level)
	}
	if event.Type != "test.event" {
		t.Errorf("Expected type 'test.event', got %s", event.Type)
	}
	if event.Message != "Test message" {
		t.Errorf("Expected message 'Test message', got %s", event.Message)
	}
	if event.Payload["key"] != "value" {
		t.Errorf("Expected payload key 'key' to be 'value', got %v", event.Payload["key"])
	}
	if event.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelWarn, FormatJSON, &buf)

	logger.Info("test.info", "should be dropped", nil)
	logger.Warn("test.warn", "should be kept", nil)

	output := buf.String()
	if strings.Contains(output, "test.info") {
		t.Errorf("Expected info event to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "test.warn") {
		t.Errorf("Expected warn event in output, got: %s", output)
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelInfo, FormatJSON, &buf).WithRunID("run-123")

	logger.Error("test.error", "Error message", map[string]interface{}{"code": 500})

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if event.RunID != "run-123" {
		t.Errorf("Expected run_id run-123, got %q", event.RunID)
	}
	if event.Level != LevelError {
		t.Errorf("Expected level error, got %s", event.Level)
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelInfo, FormatText, &buf)

	logger.Info("test.text", "Readable line", nil)

	output := buf.String()
	if !strings.Contains(output, "Readable line") {
		t.Errorf("Expected message in text output, got: %s", output)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Expected non-JSON output, got: %s", output)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gpustack.log")

	logger, err := NewFileLogger(LevelInfo, FormatJSON, path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("file.event", "Written to file", nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "file.event") {
		t.Errorf("Expected event in log file, got: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("nil.logger", "does not panic", nil)
}
