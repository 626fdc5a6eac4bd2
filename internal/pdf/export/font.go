package export

import (
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
)

// WinAnsi encodes s for a standard 14 font using WinAnsiEncoding. Runes the
// encoding cannot represent become '?'.
func WinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// showText renders s as an escaped WinAnsi literal for the Tj operator.
func showText(s string) string {
	return "(" + document.EscapeString(WinAnsi(s)) + ")"
}

// fontMetrics measures Helvetica using the core font widths bundled with
// fpdf.
type fontMetrics struct {
	pdf *fpdf.Fpdf
}

func newFontMetrics() *fontMetrics {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 1)
	return &fontMetrics{pdf: pdf}
}

// width returns the advance of s at the given size in points.
func (m *fontMetrics) width(s string, size float64) float64 {
	return m.pdf.GetStringWidth(string(WinAnsi(s))) * size
}
