package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/a3tai/mcp-pdf-filler/internal/logging"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/pdftest"
)

func TestValidator_ValidateFile(t *testing.T) {
	validator := NewValidator(logging.Discard(), 1024*1024) // 1MB limit
	tempDir := t.TempDir()

	formPath := filepath.Join(tempDir, "form.pdf")
	if err := os.WriteFile(formPath, pdftest.FormPDF(), 0o600); err != nil {
		t.Fatalf("failed to write form: %v", err)
	}
	plainPath := filepath.Join(tempDir, "plain.pdf")
	if err := os.WriteFile(plainPath, pdftest.NoFormPDF(), 0o600); err != nil {
		t.Fatalf("failed to write plain pdf: %v", err)
	}
	corruptPath := filepath.Join(tempDir, "corrupt.pdf")
	if err := os.WriteFile(corruptPath, pdftest.Corrupt(), 0o600); err != nil {
		t.Fatalf("failed to write corrupt pdf: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		expectValid bool
		expectForm  bool
	}{
		{name: "empty path", path: ""},
		{name: "non-existent file", path: "/non/existent/file.pdf"},
		{name: "corrupt file", path: corruptPath},
		{name: "pdf without form", path: plainPath, expectValid: true},
		{name: "pdf with form", path: formPath, expectValid: true, expectForm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.ValidateFile(context.Background(), tt.path)
			if result == nil {
				t.Fatalf("result should not be nil")
			}

			if result.Valid != tt.expectValid {
				t.Errorf("expected Valid=%v but got %v (%s)", tt.expectValid, result.Valid, result.Message)
			}
			if result.Path != tt.path {
				t.Errorf("expected Path=%s but got %s", tt.path, result.Path)
			}
			if !tt.expectValid && result.Message == "" {
				t.Errorf("expected validation message for invalid file")
			}
			if result.HasForm != tt.expectForm {
				t.Errorf("expected HasForm=%v but got %v", tt.expectForm, result.HasForm)
			}
			if tt.expectValid && result.Pages < 1 {
				t.Errorf("expected a page count, got %d", result.Pages)
			}
		})
	}
}

func TestValidator_ValidateFileInfo(t *testing.T) {
	validator := NewValidator(logging.Discard(), 1024) // 1KB limit
	tempDir := t.TempDir()

	write := func(name string, size int) string {
		path := filepath.Join(tempDir, name)
		if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{name: "valid pdf", path: write("valid.pdf", 100)},
		{name: "uppercase extension", path: write("UPPER.PDF", 100)},
		{name: "too large", path: write("large.pdf", 2048), expectError: true},
		{name: "empty", path: write("empty.pdf", 0), expectError: true},
		{name: "not a pdf", path: write("document.txt", 100), expectError: true},
		{name: "directory", path: tempDir, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := os.Stat(tt.path)
			if err != nil {
				t.Fatalf("failed to stat: %v", err)
			}
			err = validator.ValidateFileInfo(tt.path, info)
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTextReader_PageText(t *testing.T) {
	data, err := pdftest.PlainPDF("Hello world", "Second page")
	if err != nil {
		t.Fatalf("failed to build pdf: %v", err)
	}
	reader := NewTextReader()

	text, pages, err := reader.PageText(data, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages != 2 {
		t.Errorf("expected 2 pages, got %d", pages)
	}
	if text == "" {
		t.Errorf("expected text on page 2")
	}

	for _, n := range []int{0, 3} {
		if _, _, err := reader.PageText(data, n); err == nil {
			t.Errorf("expected error for page %d", n)
		}
	}

	if _, _, err := reader.PageText(pdftest.Corrupt(), 1); err == nil {
		t.Errorf("expected error for corrupt data")
	}
}
