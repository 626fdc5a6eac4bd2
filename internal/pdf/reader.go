package pdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextReader reads page text back out of a PDF, independently of the
// writer that produced it.
type TextReader struct {
	maxTextSize int
}

// NewTextReader creates a text reader.
func NewTextReader() *TextReader {
	return &TextReader{
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// PageText returns the plain text of page n (1-based) and the page count.
func (r *TextReader) PageText(data []byte, n int) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := reader.NumPage()
	if n < 1 || n > pages {
		return "", pages, fmt.Errorf("page %d out of range (document has %d pages)", n, pages)
	}

	page := reader.Page(n)
	if page.V.IsNull() {
		return "", pages, nil
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return "", pages, fmt.Errorf("failed to extract text from page %d: %w", n, err)
	}
	if len(content) > r.maxTextSize {
		content = content[:r.maxTextSize]
	}
	return content, pages, nil
}
