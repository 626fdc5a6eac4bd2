package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

const (
	fieldPadding    = 2.0
	minAutoFontSize = 4.0
	maxAutoFontSize = 12.0
	lineSpacing     = 1.15
	// helveticaDescent is the Helvetica descender as a fraction of the size.
	helveticaDescent = 0.207
)

// refreshAppearances regenerates the normal appearance of every widget of
// the written fields so viewers and flattening show the new values.
func (r *run) refreshAppearances(written []filled) {
	for _, wf := range written {
		f := wf.field
		err := document.Guard(func() error {
			switch f.Kind() {
			case annotation.FieldKindCheckbox, annotation.FieldKindRadio:
				return r.ensureButtonAppearances(f)
			default:
				return r.textAppearances(f, wf.display)
			}
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeFieldWriteFailure, f.Name, firstPage(f),
				fmt.Errorf("failed to build appearance: %w", err))
		}
	}
}

func (r *run) textAppearances(f *document.Field, text string) error {
	fa := document.ParseDA(f.DA)
	fontName := fa.FontName
	if fontName == "" {
		fontName = "Helv"
	}
	font, err := r.helvetica()
	if err != nil {
		return err
	}

	for _, w := range f.Widgets {
		if !w.HasRect || w.Rect.Width <= 0 || w.Rect.Height <= 0 {
			continue
		}
		content := r.textAppearanceContent(f, fa, fontName, text, w.Rect.Width, w.Rect.Height)
		ref, err := r.doc.NewStream(types.Dict{
			"Type":    types.Name("XObject"),
			"Subtype": types.Name("Form"),
			"BBox":    rectArray(0, 0, w.Rect.Width, w.Rect.Height),
			"Resources": types.Dict{
				"Font": types.Dict{fontName: *font},
			},
		}, []byte(content))
		if err != nil {
			return err
		}
		w.Dict["AP"] = types.Dict{"N": *ref}
	}
	return nil
}

func (r *run) textAppearanceContent(f *document.Field, fa document.FieldAppearance, fontName, text string, w, h float64) string {
	m := r.fontMetrics()
	multiline := f.Ff&document.FlagMultiline != 0

	var lines []string
	if multiline {
		lines = splitLines(text)
	} else {
		lines = []string{strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)}
	}

	size := fa.FontSize
	if size <= 0 {
		size = autoFontSize(m, lines, w, h, multiline)
	}

	var b strings.Builder
	b.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&b, "%s %s %s %s re W n\n", num(1), num(1), num(math.Max(w-2, 0)), num(math.Max(h-2, 0)))
	b.WriteString("BT\n")
	fmt.Fprintf(&b, "/%s %s Tf\n", fontName, num(size))
	b.WriteString(fa.ColorOperator())
	b.WriteByte('\n')

	for i, line := range lines {
		tw := m.width(line, size)
		x := fieldPadding
		switch f.Q {
		case 1:
			x = (w - tw) / 2
		case 2:
			x = w - fieldPadding - tw
		}
		var y float64
		if multiline {
			y = h - fieldPadding - size*(float64(i)+1)*lineSpacing + helveticaDescent*size
		} else {
			y = (h-size)/2 + helveticaDescent*size
		}
		fmt.Fprintf(&b, "1 0 0 1 %s %s Tm\n%s Tj\n", num(x), num(y), showText(line))
	}
	b.WriteString("ET\nQ\nEMC\n")
	return b.String()
}

// autoFontSize picks a size for a DA with size 0: the height decides, the
// widest line shrinks it to fit.
func autoFontSize(m *fontMetrics, lines []string, w, h float64, multiline bool) float64 {
	size := maxAutoFontSize
	if !multiline {
		size = math.Min(maxAutoFontSize, (h-2*fieldPadding)*0.8)
	}
	if multiline && len(lines) > 0 {
		size = math.Min(size, (h-2*fieldPadding)/(float64(len(lines))*lineSpacing))
	}
	avail := w - 2*fieldPadding
	for _, line := range lines {
		if unit := m.width(line, 1); unit > 0 && unit*size > avail {
			size = avail / unit
		}
	}
	return math.Max(size, minAutoFontSize)
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// ensureButtonAppearances gives checkbox and radio widgets without an
// appearance dictionary a drawn on state and an empty off state.
func (r *run) ensureButtonAppearances(f *document.Field) error {
	for _, w := range f.Widgets {
		if !w.HasRect || hasNormalStates(r.doc, w.Dict) {
			continue
		}
		onState := r.doc.OnState(w.Dict)
		width, height := w.Rect.Width, w.Rect.Height
		bbox := rectArray(0, 0, width, height)

		var on string
		if f.Kind() == annotation.FieldKindRadio {
			on = circle(width/2, height/2, math.Min(width, height)/4)
		} else {
			on = fmt.Sprintf("q 0 G 1 w %s %s m %s %s l S %s %s m %s %s l S Q\n",
				num(fieldPadding), num(fieldPadding), num(width-fieldPadding), num(height-fieldPadding),
				num(fieldPadding), num(height-fieldPadding), num(width-fieldPadding), num(fieldPadding))
		}
		onRef, err := r.doc.NewStream(types.Dict{
			"Type": types.Name("XObject"), "Subtype": types.Name("Form"), "BBox": bbox,
		}, []byte(on))
		if err != nil {
			return err
		}
		offRef, err := r.doc.NewStream(types.Dict{
			"Type": types.Name("XObject"), "Subtype": types.Name("Form"), "BBox": bbox,
		}, nil)
		if err != nil {
			return err
		}
		w.Dict["AP"] = types.Dict{"N": types.Dict{onState: *onRef, "Off": *offRef}}
	}
	return nil
}

func hasNormalStates(d *document.Document, widget types.Dict) bool {
	ap, err := d.Ctx.DereferenceDict(widget["AP"])
	if err != nil || ap == nil {
		return false
	}
	n, err := d.Ctx.DereferenceDict(ap["N"])
	return err == nil && len(n) > 0
}

// circle fills a circle approximated by four Bezier curves.
func circle(cx, cy, radius float64) string {
	k := 0.5523 * radius
	var b strings.Builder
	b.WriteString("q 0 g\n")
	fmt.Fprintf(&b, "%s %s m\n", num(cx+radius), num(cy))
	fmt.Fprintf(&b, "%s %s %s %s %s %s c\n", num(cx+radius), num(cy+k), num(cx+k), num(cy+radius), num(cx), num(cy+radius))
	fmt.Fprintf(&b, "%s %s %s %s %s %s c\n", num(cx-k), num(cy+radius), num(cx-radius), num(cy+k), num(cx-radius), num(cy))
	fmt.Fprintf(&b, "%s %s %s %s %s %s c\n", num(cx-radius), num(cy-k), num(cx-k), num(cy-radius), num(cx), num(cy-radius))
	fmt.Fprintf(&b, "%s %s %s %s %s %s c\n", num(cx+k), num(cy-radius), num(cx+radius), num(cy-k), num(cx+radius), num(cy))
	b.WriteString("f Q\n")
	return b.String()
}

func rectArray(x1, y1, x2, y2 float64) types.Array {
	return types.Array{types.Float(x1), types.Float(y1), types.Float(x2), types.Float(y2)}
}

// num formats an operand with at most four decimals.
func num(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
