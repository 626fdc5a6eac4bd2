package document

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4).
const (
	FlagReadOnly   = 1 << 0
	FlagRequired   = 1 << 1
	FlagMultiline  = 1 << 12
	FlagRadio      = 1 << 15
	FlagPushbutton = 1 << 16
	FlagCombo      = 1 << 17
)

// Field is a terminal form field with its inherited attributes resolved.
type Field struct {
	Index   int
	Name    string
	Dict    types.Dict
	Ref     *types.IndirectRef
	FT      string
	Ff      int
	DA      string
	Q       int
	MaxLen  int
	Widgets []*Widget
}

// Widget is one visual instance of a field.
type Widget struct {
	Index int
	Dict  types.Dict
	Ref   *types.IndirectRef
	// Page is 1-indexed; 0 means the widget is on no known page.
	Page int
	// Rect is in PDF space, bottom-left origin.
	Rect    geometry.Rect
	HasRect bool
}

// Kind maps FT and Ff onto a field kind. Pushbuttons and unknown types are
// text.
func (f *Field) Kind() annotation.FieldKind {
	switch f.FT {
	case "Btn":
		switch {
		case f.Ff&FlagRadio != 0:
			return annotation.FieldKindRadio
		case f.Ff&FlagPushbutton != 0:
			return annotation.FieldKindText
		default:
			return annotation.FieldKindCheckbox
		}
	case "Ch":
		return annotation.FieldKindSelect
	default:
		return annotation.FieldKindText
	}
}

// AcroForm returns the interactive form dictionary, or nil when the document
// has none.
func (d *Document) AcroForm() (types.Dict, error) {
	root, err := d.Ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	obj, found := root.Find("AcroForm")
	if !found {
		return nil, nil
	}
	form, err := d.Ctx.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	return form, nil
}

// Fields walks AcroForm/Fields depth first and returns the terminal fields
// in document order. Nameless terminal fields and unreadable nodes are
// skipped.
func (d *Document) Fields() ([]*Field, error) {
	form, err := d.AcroForm()
	if err != nil || form == nil {
		return nil, err
	}

	fieldsObj, found := form.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := d.Ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	w := &fieldWalker{
		doc:       d,
		formDA:    d.String(form["DA"]),
		formQ:     d.Int(form["Q"], 0),
		annotPage: d.annotPageIndex(),
		pageByRef: d.pageRefIndex(),
		visited:   map[int]bool{},
	}
	for _, obj := range fieldsArray {
		w.walk(obj, "", 0)
	}
	return w.fields, nil
}

type fieldWalker struct {
	doc       *Document
	formDA    string
	formQ     int
	annotPage map[int]int
	pageByRef map[int]int
	visited   map[int]bool
	fields    []*Field
}

func (w *fieldWalker) walk(obj types.Object, parentName string, depth int) {
	if depth > maxInheritDepth {
		return
	}
	ref, isRef := obj.(types.IndirectRef)
	if isRef {
		if w.visited[int(ref.ObjectNumber)] {
			return
		}
		w.visited[int(ref.ObjectNumber)] = true
	}

	dict, err := w.doc.Ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	name := parentName
	if t := w.doc.String(dict["T"]); t != "" {
		if name != "" {
			name += "."
		}
		name += t
	}

	var widgetObjs []types.Object
	var childFields []types.Object
	if kids, err := w.doc.Ctx.DereferenceArray(dict["Kids"]); err == nil && len(kids) > 0 {
		for _, kid := range kids {
			kidDict, err := w.doc.Ctx.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, hasT := kidDict.Find("T"); hasT {
				childFields = append(childFields, kid)
			} else {
				widgetObjs = append(widgetObjs, kid)
			}
		}
	} else {
		widgetObjs = append(widgetObjs, obj)
	}

	if len(widgetObjs) > 0 && name != "" {
		w.addField(obj, dict, name, widgetObjs)
	}
	for _, child := range childFields {
		w.walk(child, name, depth+1)
	}
}

func (w *fieldWalker) addField(obj types.Object, dict types.Dict, name string, widgetObjs []types.Object) {
	d := w.doc
	f := &Field{
		Index:  len(w.fields),
		Name:   name,
		Dict:   dict,
		FT:     d.inheritedName(dict, "FT"),
		Ff:     d.inheritedInt(dict, "Ff", 0),
		DA:     d.inheritedString(dict, "DA"),
		Q:      d.inheritedInt(dict, "Q", w.formQ),
		MaxLen: d.inheritedInt(dict, "MaxLen", 0),
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		f.Ref = &ref
	}
	if f.DA == "" {
		f.DA = w.formDA
	}

	for _, wo := range widgetObjs {
		wd, err := d.Ctx.DereferenceDict(wo)
		if err != nil || wd == nil {
			continue
		}
		widget := &Widget{Index: len(f.Widgets), Dict: wd}
		if ref, ok := wo.(types.IndirectRef); ok {
			widget.Ref = &ref
		}
		widget.Rect, widget.HasRect = d.Rect(wd["Rect"])
		widget.Page = w.widgetPage(widget)
		f.Widgets = append(f.Widgets, widget)
	}
	w.fields = append(w.fields, f)
}

// widgetPage resolves the page by reference identity: /P first, then the
// page whose /Annots lists the widget.
func (w *fieldWalker) widgetPage(widget *Widget) int {
	if p, ok := widget.Dict["P"].(types.IndirectRef); ok {
		if n, found := w.pageByRef[int(p.ObjectNumber)]; found {
			return n
		}
	}
	if widget.Ref != nil {
		if n, found := w.annotPage[int(widget.Ref.ObjectNumber)]; found {
			return n
		}
	}
	return 0
}

func (d *Document) pageRefIndex() map[int]int {
	idx := make(map[int]int, len(d.pages))
	for _, p := range d.pages {
		if p.Ref != nil {
			idx[int(p.Ref.ObjectNumber)] = p.Number
		}
	}
	return idx
}

func (d *Document) annotPageIndex() map[int]int {
	idx := map[int]int{}
	for _, p := range d.pages {
		annots, err := d.Ctx.DereferenceArray(p.Dict["Annots"])
		if err != nil {
			continue
		}
		for _, a := range annots {
			if ref, ok := a.(types.IndirectRef); ok {
				if _, seen := idx[int(ref.ObjectNumber)]; !seen {
					idx[int(ref.ObjectNumber)] = p.Number
				}
			}
		}
	}
	return idx
}

func (d *Document) inheritedName(dict types.Dict, key string) string {
	obj, _ := d.Inherited(dict, key)
	return d.Name(obj)
}

func (d *Document) inheritedString(dict types.Dict, key string) string {
	obj, _ := d.Inherited(dict, key)
	return d.String(obj)
}

func (d *Document) inheritedInt(dict types.Dict, key string, def int) int {
	obj, found := d.Inherited(dict, key)
	if !found {
		return def
	}
	return d.Int(obj, def)
}

// Value returns the field's V entry, inherited through Parent.
func (f *Field) Value(d *Document) types.Object {
	obj, _ := d.Inherited(f.Dict, "V")
	return obj
}

// OnState returns the name of the widget's "on" appearance state: the first
// key of AP/N other than Off, or Yes when the widget has no appearances.
func (d *Document) OnState(widget types.Dict) string {
	ap, err := d.Ctx.DereferenceDict(widget["AP"])
	if err != nil || ap == nil {
		return "Yes"
	}
	n, err := d.Ctx.DereferenceDict(ap["N"])
	if err != nil || n == nil {
		return "Yes"
	}
	for _, k := range sortedKeys(n) {
		if k != "Off" {
			return k
		}
	}
	return "Yes"
}

// Options returns the choice options of a Ch field (display values), or the
// export states of a radio group.
func (d *Document) Options(f *Field) []string {
	if f.Kind() == annotation.FieldKindRadio {
		var states []string
		seen := map[string]bool{}
		for _, w := range f.Widgets {
			s := d.OnState(w.Dict)
			if !seen[s] {
				seen[s] = true
				states = append(states, s)
			}
		}
		return states
	}

	optObj, _ := d.Inherited(f.Dict, "Opt")
	optArray, err := d.Ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}
	var options []string
	for _, opt := range optArray {
		// plain strings or [export display] pairs
		if arr, err := d.Ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			options = append(options, d.String(arr[1]))
			continue
		}
		if s := d.String(opt); s != "" {
			options = append(options, s)
		}
	}
	return options
}

// ExportValue maps a choice display value back to its export value. Values
// that are not display values are returned unchanged.
func (d *Document) ExportValue(f *Field, value string) string {
	optObj, _ := d.Inherited(f.Dict, "Opt")
	optArray, err := d.Ctx.DereferenceArray(optObj)
	if err != nil {
		return value
	}
	for _, opt := range optArray {
		if arr, err := d.Ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if strings.EqualFold(d.String(arr[1]), value) {
				return d.String(arr[0])
			}
		}
	}
	return value
}
