// Package review renders the "name: value" summary of the fields on a set of
// pages, as plain text and as a PDF sheet.
package review

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
)

// Sheet is the review of one document.
type Sheet struct {
	Title  string
	Pages  []int
	Fields []annotation.FormFieldDescriptor
}

// New selects the fields on the given pages, in field order. Descriptors
// for further widgets of the same field on the same page are dropped. An
// empty page list selects every page.
func New(title string, fields []annotation.FormFieldDescriptor, pages []int) *Sheet {
	pages = normalizePages(pages)
	selected := map[int]bool{}
	for _, p := range pages {
		selected[p] = true
	}

	type key struct {
		name string
		page int
	}
	seen := map[key]bool{}
	var out []annotation.FormFieldDescriptor
	for _, f := range fields {
		if len(pages) > 0 && !selected[f.Page] {
			continue
		}
		k := key{f.Name, f.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return &Sheet{Title: title, Pages: pages, Fields: out}
}

func normalizePages(pages []int) []int {
	var out []int
	for _, p := range pages {
		if p >= 1 && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Text returns one "name: value" line per field.
func (s *Sheet) Text() string {
	lines := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Name, f.Value))
	}
	return strings.Join(lines, "\n")
}

// Renderer draws sheets with fpdf's core Helvetica.
type Renderer struct {
	logger *log.Logger
	now    func() time.Time
}

// NewRenderer creates a renderer.
func NewRenderer(logger *log.Logger) *Renderer {
	return &Renderer{logger: logger, now: time.Now}
}

// Render lays the sheet out on Letter pages grouped by source page.
func (r *Renderer) Render(s *Sheet) ([]byte, error) {
	r.logger.Debug().
		Str("title", s.Title).
		Int("fields", len(s.Fields)).
		Msg("rendering review sheet")

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(54, 54, 54)
	pdf.SetAutoPageBreak(true, 54)
	pdf.SetTitle(s.Title, true)
	pdf.SetCreator("mcp-pdf-filler", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 22, tr("Review: "+s.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 14, r.now().Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(8)

	if len(s.Fields) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.CellFormat(0, 16, "No form fields on the selected pages.", "", 1, "L", false, 0, "")
	}

	page := 0
	for _, f := range s.Fields {
		if f.Page != page {
			page = f.Page
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 18, fmt.Sprintf("Page %d", page), "B", 1, "L", false, 0, "")
			pdf.Ln(4)
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 14, tr(label), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		value := f.Value
		if value == "" {
			value = "(empty)"
		}
		pdf.MultiCell(0, 14, tr(value), "", "L", false)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(0, 11, tr(f.Name), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error().Err(err).Msg("failed to render review sheet")
		return nil, fmt.Errorf("failed to render review sheet: %w", err)
	}
	return buf.Bytes(), nil
}
