package export

import (
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// annotation flag bits (PDF 32000-1, 12.5.3)
const (
	annotInvisible = 1 << 0
	annotHidden    = 1 << 1
	annotNoView    = 1 << 5
)

func (r *run) flatten() {
	switch r.engine.opts.Flatten {
	case FlattenNone:
		return
	case FlattenLock:
		r.lockFields()
	default:
		r.bakeForm()
	}
}

// lockFields sets the read-only flag on every terminal field.
func (r *run) lockFields() {
	var fields []*document.Field
	err := document.Guard(func() error {
		var err error
		fields, err = r.doc.Fields()
		return err
	})
	if err != nil {
		r.skip(pdferrors.ErrorTypeFlattenFailure, "form", 0, err)
		return
	}
	for _, f := range fields {
		f.Dict["Ff"] = types.Integer(f.Ff | document.FlagReadOnly)
		r.res.Flattened++
	}
}

// bakeForm draws each widget's current appearance into its page, removes
// the widgets from the pages and drops the form from the catalog.
func (r *run) bakeForm() {
	form, err := r.doc.AcroForm()
	if err != nil {
		r.skip(pdferrors.ErrorTypeFlattenFailure, "form", 0, err)
		return
	}
	if form == nil {
		return
	}

	for _, page := range r.doc.Pages() {
		err := document.Guard(func() error {
			return r.bakePage(page)
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeFlattenFailure, "page widgets", page.Number, err)
		}
	}

	err = document.Guard(func() error {
		root, err := r.doc.Ctx.Catalog()
		if err != nil {
			return err
		}
		delete(root, "AcroForm")
		return nil
	})
	if err != nil {
		r.skip(pdferrors.ErrorTypeFlattenFailure, "form", 0, err)
	}
}

func (r *run) bakePage(page *document.Page) error {
	annotsObj, found := page.Dict.Find("Annots")
	if !found {
		return nil
	}
	annots, err := r.doc.Ctx.DereferenceArray(annotsObj)
	if err != nil {
		return fmt.Errorf("invalid Annots: %w", err)
	}

	kept := types.Array{}
	for i, obj := range annots {
		annot, err := r.doc.Ctx.DereferenceDict(obj)
		if err != nil || annot == nil {
			kept = append(kept, obj)
			continue
		}
		if r.doc.Name(annot["Subtype"]) != "Widget" {
			kept = append(kept, obj)
			continue
		}
		if err := r.bakeWidget(page, annot); err != nil {
			r.skip(pdferrors.ErrorTypeFlattenFailure, fmt.Sprintf("widget %d", i), page.Number, err)
			continue
		}
		r.res.Flattened++
	}

	if len(kept) == 0 {
		delete(page.Dict, "Annots")
	} else {
		page.Dict["Annots"] = kept
	}
	return nil
}

// bakeWidget queues the widget's normal appearance, mapped from its BBox
// onto its Rect.
func (r *run) bakeWidget(page *document.Page, widget types.Dict) error {
	flags := r.doc.Int(widget["F"], 0)
	if flags&(annotHidden|annotNoView|annotInvisible) != 0 {
		return nil
	}
	rect, ok := r.doc.Rect(widget["Rect"])
	if !ok || rect.Width <= 0 || rect.Height <= 0 {
		return nil
	}
	ref, sd, err := r.normalAppearance(widget)
	if err != nil || sd == nil {
		return err
	}

	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")

	bbox, ok := r.doc.Rect(sd.Dict["BBox"])
	if !ok || bbox.Width <= 0 || bbox.Height <= 0 {
		bbox = geometry.Rect{Width: rect.Width, Height: rect.Height}
		sd.Dict["BBox"] = rectArray(0, 0, rect.Width, rect.Height)
	}
	bbox = r.transformBBox(bbox, sd.Dict["Matrix"])

	name, err := r.doc.AddResource(page, "XObject", "Fm", ref)
	if err != nil {
		return err
	}
	sx := rect.Width / bbox.Width
	sy := rect.Height / bbox.Height
	e := rect.X - bbox.X*sx
	f := rect.Y - bbox.Y*sy
	r.draw(page, fmt.Sprintf("q\n%s 0 0 %s %s %s cm\n/%s Do\nQ\n", num(sx), num(sy), num(e), num(f), name))
	return nil
}

// normalAppearance picks the widget's AP/N stream, selecting the AS state
// for state dictionaries. A widget without an appearance yields nil.
func (r *run) normalAppearance(widget types.Dict) (types.IndirectRef, *types.StreamDict, error) {
	ap, err := r.doc.Ctx.DereferenceDict(widget["AP"])
	if err != nil || ap == nil {
		return types.IndirectRef{}, nil, nil
	}
	n := ap["N"]
	if n == nil {
		return types.IndirectRef{}, nil, nil
	}

	if states, err := r.doc.Ctx.DereferenceDict(n); err == nil && states != nil {
		state := r.doc.Name(widget["AS"])
		if state == "" {
			state = "Off"
		}
		n = states[state]
		if n == nil {
			return types.IndirectRef{}, nil, nil
		}
	}

	ref, ok := n.(types.IndirectRef)
	if !ok {
		return types.IndirectRef{}, nil, fmt.Errorf("appearance stream is not an indirect object")
	}
	sd, _, err := r.doc.Ctx.DereferenceStreamDict(ref)
	if err != nil {
		return types.IndirectRef{}, nil, fmt.Errorf("invalid appearance stream: %w", err)
	}
	return ref, sd, nil
}

// transformBBox applies a form Matrix to the BBox and returns the bounding
// box of the result.
func (r *run) transformBBox(bbox geometry.Rect, matrixObj types.Object) geometry.Rect {
	if matrixObj == nil {
		return bbox
	}
	arr, err := r.doc.Ctx.DereferenceArray(matrixObj)
	if err != nil || len(arr) != 6 {
		return bbox
	}
	var m [6]float64
	for i, o := range arr {
		f, err := r.doc.Ctx.DereferenceNumber(o)
		if err != nil {
			return bbox
		}
		m[i] = f
	}

	xs := [2]float64{bbox.X, bbox.X + bbox.Width}
	ys := [2]float64{bbox.Y, bbox.Y + bbox.Height}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, x := range xs {
		for _, y := range ys {
			tx := m[0]*x + m[2]*y + m[4]
			ty := m[1]*x + m[3]*y + m[5]
			minX, maxX = math.Min(minX, tx), math.Max(maxX, tx)
			minY, maxY = math.Min(minY, ty), math.Max(maxY, ty)
		}
	}
	out := geometry.Normalize(minX, minY, maxX, maxY)
	if out.Width <= 0 || out.Height <= 0 {
		return bbox
	}
	return out
}
