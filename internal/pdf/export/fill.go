package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// filled is a field whose value was written, with the text its appearance
// should show.
type filled struct {
	field   *document.Field
	display string
}

// fillFields writes descriptor values into the document's fields by raw
// name and returns the fields that were written. Descriptors sharing a name
// (one per widget) collapse to one write; the last non-empty value wins.
// Empty values leave the field as the document has it.
func (r *run) fillFields(fields []annotation.FormFieldDescriptor) []filled {
	values, order := collapseByName(fields)
	if len(order) == 0 {
		return nil
	}

	var docFields []*document.Field
	err := document.Guard(func() error {
		var err error
		docFields, err = r.doc.Fields()
		return err
	})
	if err != nil {
		for _, name := range order {
			r.skip(pdferrors.ErrorTypeFieldWriteFailure, name, 0, err)
		}
		return nil
	}

	byName := make(map[string]*document.Field, len(docFields))
	for _, f := range docFields {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f
		}
	}

	var written []filled
	for _, name := range order {
		f, ok := byName[name]
		if !ok {
			r.skip(pdferrors.ErrorTypeFieldWriteFailure, name, 0, fmt.Errorf("no field named %q in document", name))
			continue
		}
		value := values[name]
		err := document.Guard(func() error {
			return r.writeField(f, value)
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeFieldWriteFailure, name, firstPage(f), err)
			continue
		}
		r.res.FieldsApplied++
		written = append(written, filled{field: f, display: value})
	}
	return written
}

func collapseByName(fields []annotation.FormFieldDescriptor) (map[string]string, []string) {
	values := map[string]string{}
	var order []string
	for _, fd := range fields {
		if fd.Name == "" || fd.Value == "" {
			continue
		}
		if _, seen := values[fd.Name]; !seen {
			order = append(order, fd.Name)
		}
		values[fd.Name] = fd.Value
	}
	return values, order
}

func firstPage(f *document.Field) int {
	for _, w := range f.Widgets {
		if w.Page > 0 {
			return w.Page
		}
	}
	return 0
}

func (r *run) writeField(f *document.Field, value string) error {
	switch f.Kind() {
	case annotation.FieldKindCheckbox:
		return r.writeCheckbox(f, value)
	case annotation.FieldKindRadio:
		return r.writeRadio(f, value)
	case annotation.FieldKindSelect:
		return r.writeText(f, r.doc.ExportValue(f, value))
	default:
		if f.MaxLen > 0 && utf8.RuneCountInString(value) > f.MaxLen {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeFieldWriteFailure,
				fmt.Sprintf("value has %d characters, field allows %d", utf8.RuneCountInString(value), f.MaxLen))
		}
		return r.writeText(f, value)
	}
}

func (r *run) writeText(f *document.Field, value string) error {
	obj, err := document.TextString(value)
	if err != nil {
		return err
	}
	f.Dict["V"] = obj
	return nil
}

// IsChecked reports whether a checkbox value means "on".
func IsChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "checked", "x":
		return true
	default:
		return false
	}
}

func (r *run) writeCheckbox(f *document.Field, value string) error {
	checked := IsChecked(value)
	state := "Off"
	for _, w := range f.Widgets {
		ws := "Off"
		if checked {
			ws = r.doc.OnState(w.Dict)
			state = ws
		}
		w.Dict["AS"] = types.Name(ws)
	}
	if checked && len(f.Widgets) == 0 {
		state = "Yes"
	}
	f.Dict["V"] = types.Name(state)
	return nil
}

func (r *run) writeRadio(f *document.Field, value string) error {
	value = strings.TrimSpace(value)
	selected := ""
	if value != "" && !strings.EqualFold(value, "Off") {
		selected = r.matchRadioState(f, value)
		if selected == "" {
			return pdferrors.NewPDFError(pdferrors.ErrorTypeFieldWriteFailure,
				fmt.Sprintf("%q is not one of the radio states %v", value, r.doc.Options(f)))
		}
	}

	for _, w := range f.Widgets {
		if selected != "" && r.doc.OnState(w.Dict) == selected {
			w.Dict["AS"] = types.Name(selected)
		} else {
			w.Dict["AS"] = types.Name("Off")
		}
	}
	if selected == "" {
		f.Dict["V"] = types.Name("Off")
	} else {
		f.Dict["V"] = types.Name(selected)
	}
	return nil
}

func (r *run) matchRadioState(f *document.Field, value string) string {
	states := r.doc.Options(f)
	for _, s := range states {
		if s == value {
			return s
		}
	}
	for _, s := range states {
		if strings.EqualFold(s, value) {
			return s
		}
	}
	return ""
}
