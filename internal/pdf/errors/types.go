package errors

import (
	"errors"
	"fmt"
	"time"
)

// PDFError describes a failure while reading or rewriting a document, with
// enough context to report which item was affected.
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Item        string    `json:"item,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	Err         error     `json:"-"`
}

// ErrorType categorizes failures by how the caller should react to them.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeParseFailure: the whole document could not be parsed. The
	// export degrades to returning the source bytes.
	ErrorTypeParseFailure
	// ErrorTypeFieldWriteFailure: one field value could not be written.
	ErrorTypeFieldWriteFailure
	// ErrorTypeImageDecodeFailure: one signature image could not be embedded.
	ErrorTypeImageDecodeFailure
	// ErrorTypeInvalidAnnotation: an overlay points at a page that does not
	// exist or has unusable geometry.
	ErrorTypeInvalidAnnotation
	// ErrorTypeFlattenFailure: a widget could not be turned into page content.
	ErrorTypeFlattenFailure
	// ErrorTypeSerializeFailure: the mutated document could not be written.
	ErrorTypeSerializeFailure
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Item != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Item, e.Message)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is matches another *PDFError of the same type, so errors.Is can test for a
// category with a bare value such as &PDFError{Type: ErrorTypeParseFailure}.
func (e *PDFError) Is(target error) bool {
	var t *PDFError
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeParseFailure:
		return "PARSE_FAILURE"
	case ErrorTypeFieldWriteFailure:
		return "FIELD_WRITE_FAILURE"
	case ErrorTypeImageDecodeFailure:
		return "IMAGE_DECODE_FAILURE"
	case ErrorTypeInvalidAnnotation:
		return "INVALID_ANNOTATION"
	case ErrorTypeFlattenFailure:
		return "FLATTEN_FAILURE"
	case ErrorTypeSerializeFailure:
		return "SERIALIZE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeFieldWriteFailure, ErrorTypeImageDecodeFailure,
		ErrorTypeInvalidAnnotation, ErrorTypeFlattenFailure:
		return SeverityWarning
	case ErrorTypeParseFailure:
		return SeverityError
	case ErrorTypeSerializeFailure:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether processing can go on after an error of this
// type. Per-item failures are skipped, a parse failure degrades the export,
// and a serialize failure ends it.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeParseFailure, ErrorTypeFieldWriteFailure, ErrorTypeImageDecodeFailure,
		ErrorTypeInvalidAnnotation, ErrorTypeFlattenFailure:
		return true
	default:
		return false
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, err error) *PDFError {
	e := NewPDFError(errorType, err.Error())
	e.Err = err
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithItem names the field or overlay the error belongs to.
func (e *PDFError) WithItem(item string) *PDFError {
	e.Item = item
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsType reports whether err is a *PDFError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var pe *PDFError
	return errors.As(err, &pe) && pe.Type == errorType
}

// ErrorCollection gathers the per-item failures of one operation.
type ErrorCollection struct {
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// All returns errors followed by warnings.
func (ec *ErrorCollection) All() []*PDFError {
	all := make([]*PDFError, 0, len(ec.Errors)+len(ec.Warnings))
	all = append(all, ec.Errors...)
	return append(all, ec.Warnings...)
}

// CountType returns how many collected entries have the given type.
func (ec *ErrorCollection) CountType(errorType ErrorType) int {
	n := 0
	for _, e := range ec.All() {
		if e.Type == errorType {
			n++
		}
	}
	return n
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
