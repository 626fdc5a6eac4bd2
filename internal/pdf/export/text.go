package export

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

const (
	// textPadding is the inset of text overlays in render units.
	textPadding = 5.0
	textLeading = 1.2
)

// drawTexts draws each text overlay into its page in Helvetica.
func (r *run) drawTexts(texts []annotation.TextAnnotation) {
	for _, t := range texts {
		page := r.doc.Page(t.Page)
		if page == nil {
			r.skip(pdferrors.ErrorTypeInvalidAnnotation, t.ID, t.Page,
				fmt.Errorf("page %d does not exist (document has %d)", t.Page, r.doc.PageCount()))
			continue
		}
		if t.FontSizePts <= 0 {
			r.skip(pdferrors.ErrorTypeInvalidAnnotation, t.ID, t.Page, fmt.Errorf("font size must be positive"))
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}

		err := document.Guard(func() error {
			return r.placeText(page, t)
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeInvalidAnnotation, t.ID, t.Page, err)
			continue
		}
		r.res.TextsApplied++
	}
}

func (r *run) placeText(page *document.Page, t annotation.TextAnnotation) error {
	font, err := r.helvetica()
	if err != nil {
		return err
	}
	fontName, err := r.pageFontName(page, *font)
	if err != nil {
		return err
	}

	scaleX, scaleY := geometry.Scales(t.RenderSnapshot, page.Geometry)
	size := geometry.ScaleScalar(t.FontSizePts, t.RenderSnapshot, page.Geometry)
	padX, padY := textPadding*scaleX, textPadding*scaleY
	rect := page.ToPageSpace(geometry.ToPdfSpace(t.Rect, t.RenderSnapshot, page.Geometry))
	top := rect.Y + rect.Height

	var b strings.Builder
	b.WriteString("BT\n")
	fmt.Fprintf(&b, "/%s %s Tf\n0 g\n", fontName, num(size))
	for i, line := range splitLines(t.Text) {
		y := top - padY - float64(i+1)*textLeading*size
		fmt.Fprintf(&b, "1 0 0 1 %s %s Tm\n%s Tj\n", num(rect.X+padX), num(y), showText(line))
	}
	b.WriteString("ET\n")
	r.draw(page, b.String())
	return nil
}

// pageFontName returns the resource name under which the shared Helvetica
// object is registered on the page, adding it when missing.
func (r *run) pageFontName(page *document.Page, font types.IndirectRef) (string, error) {
	res, err := r.doc.Resources(page)
	if err != nil {
		return "", err
	}
	if fonts, err := r.doc.Ctx.DereferenceDict(res["Font"]); err == nil {
		for name, obj := range fonts {
			if ref, ok := obj.(types.IndirectRef); ok && ref.ObjectNumber == font.ObjectNumber {
				return name, nil
			}
		}
	}
	return r.doc.AddResource(page, "Font", "FHelv", font)
}
