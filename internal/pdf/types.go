package pdf

import (
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/sampledata"
)

// PageInfo describes one page of an extracted document.
type PageInfo struct {
	Page     int                     `json:"page"`
	Geometry geometry.PageGeometry   `json:"geometry"`
	Snapshot geometry.RenderSnapshot `json:"render_snapshot"`
}

// Annotations is what a caller wants written into a document: field values
// keyed by field id or raw field name, plus overlays.
type Annotations struct {
	Values     map[string]string `json:"values"`
	Signatures []SignatureInput  `json:"signatures" validate:"dive"`
	Texts      []TextInput       `json:"texts" validate:"dive"`
}

// SignatureInput places an image given as a data URI. Rect and snapshot are
// in render units; omitted, they default to the store placement and to the
// snapshot of the configured render width.
type SignatureInput struct {
	Image          string                   `json:"image" validate:"required,startswith=data:"`
	Page           int                      `json:"page" validate:"gte=1"`
	Rect           *geometry.Rect           `json:"rect,omitempty"`
	RenderSnapshot *geometry.RenderSnapshot `json:"render_snapshot,omitempty"`
}

// TextInput places a free text block.
type TextInput struct {
	Text           string                   `json:"text" validate:"required"`
	FontSize       float64                  `json:"font_size,omitempty" validate:"gte=0"`
	Page           int                      `json:"page" validate:"gte=1"`
	Rect           *geometry.Rect           `json:"rect,omitempty"`
	RenderSnapshot *geometry.RenderSnapshot `json:"render_snapshot,omitempty"`
}

// Request Types

// PDFExtractFieldsRequest represents a request to list the form fields of a file
type PDFExtractFieldsRequest struct {
	Path        string  `json:"path"`
	RenderWidth float64 `json:"render_width,omitempty"`
}

// PDFExportRequest represents a request to write annotations into a file
type PDFExportRequest struct {
	Path        string      `json:"path"`
	Annotations Annotations `json:"annotations"`
	Output      string      `json:"output,omitempty"`
	Flatten     string      `json:"flatten,omitempty"`
	RenderWidth float64     `json:"render_width,omitempty"`
	// ApplySample prefills fields from sample data before Values are
	// applied. SamplePath defaults to the configured sample data file.
	ApplySample bool   `json:"apply_sample,omitempty"`
	SamplePath  string `json:"sample_path,omitempty"`
}

// PDFMatchSampleDataRequest represents a request to propose sample values
type PDFMatchSampleDataRequest struct {
	Path       string `json:"path"`
	SamplePath string `json:"sample_path,omitempty"`
}

// PDFReviewSheetRequest represents a request to render a review sheet
type PDFReviewSheetRequest struct {
	Path   string `json:"path"`
	Pages  []int  `json:"pages,omitempty"`
	Output string `json:"output,omitempty"`
}

// PDFPageTextRequest represents a request to read back the text of a page
type PDFPageTextRequest struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

// PDFValidateFileRequest represents a request to validate a PDF file
type PDFValidateFileRequest struct {
	Path string `json:"path"`
}

// Response Types

// PDFExtractFieldsResult lists the fields of a file
type PDFExtractFieldsResult struct {
	Path        string                           `json:"path"`
	RenderWidth float64                          `json:"render_width"`
	Pages       []PageInfo                       `json:"pages"`
	Fields      []annotation.FormFieldDescriptor `json:"fields"`
}

// SkippedItem is one annotation the export could not apply.
type SkippedItem struct {
	Type    string `json:"type"`
	Item    string `json:"item,omitempty"`
	Page    int    `json:"page,omitempty"`
	Message string `json:"message"`
}

// PDFExportResult reports what an export wrote
type PDFExportResult struct {
	Path              string        `json:"path"`
	Output            string        `json:"output"`
	Size              int64         `json:"size"`
	Status            export.Status `json:"status"`
	Flatten           string        `json:"flatten"`
	SampleValues      int           `json:"sample_values,omitempty"`
	FieldsApplied     int           `json:"fields_applied"`
	SignaturesApplied int           `json:"signatures_applied"`
	TextsApplied      int           `json:"texts_applied"`
	Flattened         int           `json:"flattened"`
	Skipped           []SkippedItem `json:"skipped"`
}

// PDFMatchSampleDataResult lists proposed values
type PDFMatchSampleDataResult struct {
	Path       string             `json:"path"`
	SamplePath string             `json:"sample_path"`
	Records    int                `json:"records"`
	Fields     int                `json:"fields"`
	Matches    []sampledata.Match `json:"matches"`
}

// PDFReviewSheetResult reports a rendered review sheet
type PDFReviewSheetResult struct {
	Path   string `json:"path"`
	Output string `json:"output"`
	Size   int64  `json:"size"`
	Pages  []int  `json:"pages"`
	Fields int    `json:"fields"`
	Text   string `json:"text"`
}

// PDFPageTextResult carries the plain text of one page
type PDFPageTextResult struct {
	Path  string `json:"path"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

// PDFValidateFileResult represents the result of a PDF validation operation
type PDFValidateFileResult struct {
	Path       string `json:"path"`
	Valid      bool   `json:"valid"`
	Message    string `json:"message,omitempty"`
	Pages      int    `json:"pages,omitempty"`
	HasForm    bool   `json:"has_form"`
	FieldCount int    `json:"field_count"`
}
