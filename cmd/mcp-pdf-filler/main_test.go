package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
)

func capturePrintVersion(t *testing.T) string {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		printVersion()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = "1.2.3"
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	output := capturePrintVersion(t)
	for _, expected := range []string{
		"MCP PDF Filler",
		"Version: 1.2.3",
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestVersionRequested(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"no args", nil, false},
		{"-version flag", []string{"-version"}, true},
		{"--version flag", []string{"--version"}, true},
		{"-v flag", []string{"-v"}, true},
		{"with other args", []string{"--mode=server", "--version", "--port=8080"}, true},
		{"similar but not version flag", []string{"-verbose", "-versions"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := versionRequested(tt.args); got != tt.want {
				t.Errorf("versionRequested(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestSetupLogging(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		level     string
		wantLevel log.Level
	}{
		{"stdio quiet by default", config.ModeStdio, "info", log.WarnLevel},
		{"stdio debug", config.ModeStdio, "debug", log.DebugLevel},
		{"server info", config.ModeServer, "info", log.InfoLevel},
		{"server error", config.ModeServer, "error", log.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Mode: tt.mode, LogLevel: tt.level}
			logger := setupLogging(cfg)
			if logger.Level != tt.wantLevel {
				t.Errorf("setupLogging() level = %v, want %v", logger.Level, tt.wantLevel)
			}
		})
	}
}
