// Package document wraps a pdfcpu context with the page and form lookups the
// extractor and the export engine share.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// maxInheritDepth bounds Parent chain walks on malformed files.
const maxInheritDepth = 32

// Document is a parsed PDF and its page index.
type Document struct {
	Ctx   *model.Context
	pages []*Page
}

// Page is one page of the document. Dict is the live page dictionary, so
// changes to it are serialized with the document.
type Page struct {
	Number   int
	Ref      *types.IndirectRef
	Dict     types.Dict
	Geometry geometry.PageGeometry
	// OriginX and OriginY are the lower-left corner of the MediaBox.
	OriginX, OriginY float64
}

// Open parses data permissively. Any failure, including a panic inside the
// parser, is reported as a ParseFailure.
func Open(ctx context.Context, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeParseFailure, "empty document")
	}

	var doc *Document
	err := Guard(func() error {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed

		pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
		if err != nil {
			return fmt.Errorf("failed to read PDF context: %w", err)
		}
		if err := pdfCtx.EnsurePageCount(); err != nil {
			return fmt.Errorf("failed to ensure page count: %w", err)
		}

		doc = &Document{Ctx: pdfCtx}
		return doc.indexPages()
	})
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeParseFailure, err)
	}
	return doc, nil
}

// Guard runs fn and turns a panic into an error. pdfcpu panics on some
// malformed inputs instead of returning errors.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()
	return fn()
}

func (d *Document) indexPages() error {
	if d.Ctx.PageCount <= 0 {
		return fmt.Errorf("document has no pages")
	}
	d.pages = make([]*Page, 0, d.Ctx.PageCount)
	for p := 1; p <= d.Ctx.PageCount; p++ {
		dict, ref, _, err := d.Ctx.PageDict(p, false)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", p, err)
		}
		if dict == nil {
			return fmt.Errorf("page %d is missing", p)
		}
		box := d.mediaBox(dict)
		d.pages = append(d.pages, &Page{
			Number:   p,
			Ref:      ref,
			Dict:     dict,
			Geometry: geometry.PageGeometry{WidthPts: box.Width, HeightPts: box.Height},
			OriginX:  box.X,
			OriginY:  box.Y,
		})
	}
	return nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// Page returns the 1-indexed page, or nil when out of range.
func (d *Document) Page(n int) *Page {
	if n < 1 || n > len(d.pages) {
		return nil
	}
	return d.pages[n-1]
}

// Pages returns all pages in order.
func (d *Document) Pages() []*Page {
	return d.pages
}

// Inherited looks a key up on dict and then on its Parent chain.
func (d *Document) Inherited(dict types.Dict, key string) (types.Object, bool) {
	for depth := 0; dict != nil && depth < maxInheritDepth; depth++ {
		if obj, found := dict.Find(key); found && obj != nil {
			return obj, true
		}
		parentObj, found := dict.Find("Parent")
		if !found {
			return nil, false
		}
		parent, err := d.Ctx.DereferenceDict(parentObj)
		if err != nil {
			return nil, false
		}
		dict = parent
	}
	return nil, false
}

// mediaBox returns the inherited MediaBox, or US Letter when it is missing
// or degenerate.
func (d *Document) mediaBox(pageDict types.Dict) geometry.Rect {
	fallback := geometry.Rect{Width: geometry.DefaultPageWidth, Height: geometry.DefaultPageHeight}
	obj, found := d.Inherited(pageDict, "MediaBox")
	if !found {
		return fallback
	}
	r, ok := d.Rect(obj)
	if !ok || r.Width <= 0 || r.Height <= 0 {
		return fallback
	}
	return r
}

// ToPageSpace shifts a rectangle measured from the MediaBox corner into the
// page's user space.
func (p *Page) ToPageSpace(r geometry.Rect) geometry.Rect {
	r.X += p.OriginX
	r.Y += p.OriginY
	return r
}

// FromPageSpace is the inverse of ToPageSpace.
func (p *Page) FromPageSpace(r geometry.Rect) geometry.Rect {
	r.X -= p.OriginX
	r.Y -= p.OriginY
	return r
}

// Rect reads a four number array as a normalized rectangle.
func (d *Document) Rect(obj types.Object) (geometry.Rect, bool) {
	arr, err := d.Ctx.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return geometry.Rect{}, false
	}
	var c [4]float64
	for i, o := range arr {
		f, err := d.Ctx.DereferenceNumber(o)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return geometry.Rect{}, false
		}
		c[i] = f
	}
	return geometry.Normalize(c[0], c[1], c[2], c[3]), true
}

// String dereferences a text string, returning "" when absent or invalid.
func (d *Document) String(obj types.Object) string {
	if obj == nil {
		return ""
	}
	s, err := d.Ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// Name dereferences a name, returning "" when absent or invalid.
func (d *Document) Name(obj types.Object) string {
	if obj == nil {
		return ""
	}
	n, err := d.Ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

// Int dereferences an integer, returning def when absent or invalid.
func (d *Document) Int(obj types.Object, def int) int {
	if obj == nil {
		return def
	}
	i, err := d.Ctx.DereferenceInteger(obj)
	if err != nil || i == nil {
		if f, err := d.Ctx.DereferenceNumber(obj); err == nil {
			return int(f)
		}
		return def
	}
	return int(*i)
}

// Write serializes the document.
func (d *Document) Write(w io.Writer) error {
	return Guard(func() error {
		return api.WriteContext(d.Ctx, w)
	})
}

// Bytes serializes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
