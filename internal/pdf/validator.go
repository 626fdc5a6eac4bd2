package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
)

// Validator handles PDF file validation operations
type Validator struct {
	logger      *log.Logger
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(logger *log.Logger, maxFileSize int64) *Validator {
	return &Validator{
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks that a file is a PDF both readers accept and reports
// whether it carries a form.
func (v *Validator) ValidateFile(ctx context.Context, filePath string) *PDFValidateFileResult {
	result := &PDFValidateFileResult{
		Path:  filePath,
		Valid: false,
	}

	if err := v.validatePDFFile(filePath); err != nil {
		result.Message = err.Error()
		return result
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		result.Message = fmt.Sprintf("invalid PDF file: %v", err)
		return result
	}
	result.Pages = reader.NumPage()
	f.Close()

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Message = fmt.Sprintf("cannot read file: %v", err)
		return result
	}
	doc, err := document.Open(ctx, data)
	if err != nil {
		result.Message = fmt.Sprintf("invalid PDF structure: %v", err)
		return result
	}

	err = document.Guard(func() error {
		fields, err := doc.Fields()
		if err != nil {
			return err
		}
		result.HasForm = len(fields) > 0
		result.FieldCount = len(fields)
		return nil
	})
	if err != nil {
		v.logger.Debug().Err(err).Str("path", filePath).Msg("form dictionary unreadable")
	}

	result.Valid = true
	return result
}

// validatePDFFile performs the checks that need no parsing
func (v *Validator) validatePDFFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	return v.ValidateFileInfo(filePath, fileInfo)
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
