package utils

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatLog(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		message  string
		expected string
	}{
		{
			name:     "plain tag and message",
			tag:      "Vision",
			message:  "recognition finished",
			expected: "[Vision] recognition finished",
		},
		{
			name:     "empty tag",
			tag:      "",
			message:  "no tag here",
			expected: "no tag here",
		},
		{
			name:     "message already tagged",
			tag:      "HTTP",
			message:  "[Boot] already tagged",
			expected: "[Boot] already tagged",
		},
		{
			name:     "tag with surrounding spaces",
			tag:      " Image ",
			message:  " flattened alpha channel ",
			expected: "[Image] flattened alpha channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatLog(tt.tag, tt.message)
			if got != tt.expected {
				t.Errorf("FormatLog(%q, %q) = %q, expected %q", tt.tag, tt.message, got, tt.expected)
			}
		})
	}
}

func TestCustomTextHandler_ModuleTag(t *testing.T) {
	var buf bytes.Buffer
	handler := &CustomTextHandler{writer: &buf, level: slog.LevelDebug}

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "[Vision] request accepted", 0)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[Vision] request accepted") {
		t.Errorf("output %q missing tagged message", out)
	}
	if strings.Contains(out, "[INFO]") {
		t.Errorf("module log should not carry a level label, got %q", out)
	}
}

func TestNewLogger_WritesToFile(t *testing.T) {
	tempDir := t.TempDir()
	logger, err := NewLogger(&LogCfg{
		LogLevel: "info",
		LogDir:   tempDir,
		LogFile:  "server.log",
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.InfoTag("Boot", "logger smoke entry %d", 42)

	data, err := os.ReadFile(filepath.Join(tempDir, "server.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "logger smoke entry 42") {
		t.Errorf("log file does not contain expected entry: %s", string(data))
	}
}
