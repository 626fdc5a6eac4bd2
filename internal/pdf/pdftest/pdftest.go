// Package pdftest builds small PDF documents for tests: AcroForm fixtures
// assembled object by object, and plain pages rendered with fpdf.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"

	"github.com/go-pdf/fpdf"
)

// Builder assembles a PDF file from numbered object bodies and writes a
// classic cross reference table with exact offsets.
type Builder struct {
	objects map[int][]byte
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{objects: map[int][]byte{}}
}

// Object sets the body of object n, e.g. "<< /Type /Catalog ... >>".
func (b *Builder) Object(n int, body string) *Builder {
	b.objects[n] = []byte(body)
	return b
}

// Stream sets object n to a stream with the given dictionary entries. Length
// is added automatically.
func (b *Builder) Stream(n int, dictEntries string, data []byte) *Builder {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dictEntries, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	b.objects[n] = buf.Bytes()
	return b
}

// Bytes renders the file with the given root object.
func (b *Builder) Bytes(root int) []byte {
	nums := make([]int, 0, len(b.objects))
	maxNum := 0
	for n := range b.objects {
		nums = append(nums, n)
		if n > maxNum {
			maxNum = n
		}
	}
	sort.Ints(nums)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make(map[int]int, len(nums))
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", n)
		buf.Write(b.objects[n])
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= maxNum; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", maxNum+1, root, xref)
	return buf.Bytes()
}

// Field names of the form fixture.
const (
	GivenName = "GivenName"
	Agree     = "Agree"
	Choice    = "Choice"
	Country   = "Country"
	Barcode   = "Page1_Barcode[0]"
	Street    = "Address.Street"
	Second    = "SecondPage"
	Keep      = "Keep"
)

// Rectangles of the form fixture in PDF space (x1 y1 x2 y2).
var (
	GivenNameRect = [4]float64{50, 700, 150, 720}
	SecondRect    = [4]float64{72, 100, 272, 124}
)

// Page sizes in points.
const (
	LetterWidth  = 612.0
	LetterHeight = 792.0
	A4Width      = 595.0
	A4Height     = 842.0
)

var (
	checkOn  = []byte("0 g 3 3 14 14 re f")
	checkOff = []byte("")
	heading  = []byte("BT /F1 18 Tf 50 740 Td (Application Form) Tj ET")
)

// FormPDF returns a one page Letter document with an AcroForm holding a text
// field, a checkbox, a two button radio group, a combo box, a barcode field
// and a nested field.
//
// Terminal field order: GivenName, Agree, Choice, Country, Page1_Barcode[0],
// Address.Street. The radio buttons carry no /P entry and resolve their page
// through /Annots.
func FormPDF() []byte {
	return formBuilder().Bytes(1)
}

func formBuilder() *Builder {
	return NewBuilder().
		Object(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>").
		Object(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>").
		Object(3, "<< /Fields [5 0 R 6 0 R 7 0 R 15 0 R 10 0 R 16 0 R] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv 11 0 R >> >> >>").
		Object(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 11 0 R >> >> /Contents 12 0 R /Annots [5 0 R 6 0 R 8 0 R 9 0 R 15 0 R 10 0 R 17 0 R] >>").
		Object(5, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (GivenName) /TU (Given Name) /Rect [50 700 150 720] /P 4 0 R /F 4 /DA (/Helv 12 Tf 0 g) /MaxLen 20 >>").
		Object(6, "<< /Type /Annot /Subtype /Widget /FT /Btn /T (Agree) /Rect [50 650 70 670] /P 4 0 R /F 4 /V /Off /AS /Off /AP << /N << /Yes 13 0 R /Off 14 0 R >> >> >>").
		Object(7, "<< /FT /Btn /Ff 49152 /T (Choice) /V /Off /Kids [8 0 R 9 0 R] >>").
		Object(8, "<< /Type /Annot /Subtype /Widget /Parent 7 0 R /Rect [50 600 64 614] /F 4 /AS /Off /AP << /N << /A 13 0 R /Off 14 0 R >> >> >>").
		Object(9, "<< /Type /Annot /Subtype /Widget /Parent 7 0 R /Rect [100 600 114 614] /F 4 /AS /Off /AP << /N << /B 13 0 R /Off 14 0 R >> >> >>").
		Object(10, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (Page1_Barcode[0]) /Rect [400 50 550 100] /P 4 0 R /F 4 >>").
		Object(11, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>").
		Stream(12, "", heading).
		Stream(13, "/Type /XObject /Subtype /Form /BBox [0 0 20 20]", checkOn).
		Stream(14, "/Type /XObject /Subtype /Form /BBox [0 0 20 20]", checkOff).
		Object(15, "<< /Type /Annot /Subtype /Widget /FT /Ch /Ff 131072 /T (Country) /Opt [[(US) (United States)] [(CA) (Canada)]] /Rect [200 650 300 670] /P 4 0 R /F 4 /DA (/Helv 10 Tf 0 0 1 rg) /Q 1 >>").
		Object(16, "<< /T (Address) /Kids [17 0 R] >>").
		Object(17, "<< /Type /Annot /Subtype /Widget /FT /Tx /Parent 16 0 R /T (Street) /Rect [50 550 250 570] /P 4 0 R /F 4 >>")
}

// MultiPagePDF returns a two page document: page 1 is Letter with the
// GivenName field, page 2 is A4 with the SecondPage field listed only in its
// /Annots. Pages inherit Resources from the page tree root.
func MultiPagePDF() []byte {
	return NewBuilder().
		Object(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>").
		Object(2, "<< /Type /Pages /Kids [4 0 R 5 0 R] /Count 2 /Resources << /Font << /F1 8 0 R >> >> >>").
		Object(3, "<< /Fields [6 0 R 7 0 R] /DA (/Helv 0 Tf 0 g) >>").
		Object(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 9 0 R /Annots [6 0 R] >>").
		Object(5, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents [10 0 R 11 0 R] /Annots [7 0 R] >>").
		Object(6, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (GivenName) /Rect [50 700 150 720] /P 4 0 R /F 4 /DA (/Helv 12 Tf 0 g) >>").
		Object(7, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (SecondPage) /Rect [72 100 272 124] /F 4 >>").
		Object(8, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>").
		Stream(9, "", heading).
		Stream(10, "", []byte("BT /F1 12 Tf 72 800 Td (Part two) Tj ET")).
		Stream(11, "", []byte("BT /F1 12 Tf 72 780 Td (continued) Tj ET")).
		Bytes(1)
}

// NoFormPDF returns a one page document without an AcroForm.
func NoFormPDF() []byte {
	return NewBuilder().
		Object(1, "<< /Type /Catalog /Pages 2 0 R >>").
		Object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		Object(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 4 0 R >>").
		Stream(4, "", []byte("")).
		Bytes(1)
}

// PrefilledPDF returns a one page document whose single text field Keep
// already holds the value "Original".
func PrefilledPDF() []byte {
	return NewBuilder().
		Object(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>").
		Object(2, "<< /Type /Pages /Kids [4 0 R] /Count 1 >>").
		Object(3, "<< /Fields [5 0 R] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv 6 0 R >> >> >>").
		Object(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Annots [5 0 R] >>").
		Object(5, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (Keep) /V (Original) /Rect [50 700 250 720] /P 4 0 R /F 4 /DA (/Helv 12 Tf 0 g) >>").
		Object(6, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>").
		Bytes(1)
}

// Corrupt returns bytes that look like a PDF but cannot be parsed.
func Corrupt() []byte {
	return []byte("%PDF-1.7\n1 0 obj\n<< /Type /Cat")
}

// PlainPDF renders a document with one line of text per page using fpdf.
func PlainPDF(lines ...string) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetFont("Helvetica", "", 14)
	for _, line := range lines {
		doc.AddPage()
		doc.Text(72, 72, line)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// PNG encodes a w x h image. With alpha the left half is transparent.
func PNG(w, h int, alpha bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 30, B: 200, A: a})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// JPEG encodes a w x h grey image.
func JPEG(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
