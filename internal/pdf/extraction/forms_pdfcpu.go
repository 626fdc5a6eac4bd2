// Package extraction recovers form field descriptors from a PDF's AcroForm,
// positioned in the render space of a preview.
package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/phuslu/log"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/sampledata"
)

// FormExtractor reads form fields using pdfcpu.
type FormExtractor struct {
	logger *log.Logger
}

// NewFormExtractor creates a new form extractor.
func NewFormExtractor(logger *log.Logger) *FormExtractor {
	return &FormExtractor{logger: logger}
}

// Extract returns one descriptor per widget, in field order. Unparsable
// documents yield an empty result.
func (fe *FormExtractor) Extract(ctx context.Context, data []byte, renderWidth float64) []annotation.FormFieldDescriptor {
	doc, err := document.Open(ctx, data)
	if err != nil {
		fe.logger.Warn().Err(err).Int("bytes", len(data)).Msg("form extraction skipped: document could not be parsed")
		return []annotation.FormFieldDescriptor{}
	}
	return fe.ExtractFromDocument(doc, renderWidth)
}

// ExtractFromDocument extracts descriptors from an opened document.
func (fe *FormExtractor) ExtractFromDocument(doc *document.Document, renderWidth float64) []annotation.FormFieldDescriptor {
	descriptors := []annotation.FormFieldDescriptor{}

	var fields []*document.Field
	err := document.Guard(func() error {
		var err error
		fields, err = doc.Fields()
		return err
	})
	if err != nil {
		fe.logger.Warn().Err(err).Msg("form extraction skipped: invalid form dictionary")
		return descriptors
	}

	for _, field := range fields {
		if isBarcode(field.Name) {
			fe.logger.Debug().Str("field", field.Name).Msg("skipping barcode field")
			continue
		}
		err := document.Guard(func() error {
			descriptors = append(descriptors, fe.describeField(doc, field, renderWidth)...)
			return nil
		})
		if err != nil {
			fe.logger.Warn().Err(err).Str("field", field.Name).Msg("skipping malformed field")
		}
	}

	fe.logger.Debug().Int("fields", len(fields)).Int("widgets", len(descriptors)).Msg("form fields extracted")
	return descriptors
}

func isBarcode(name string) bool {
	return strings.Contains(strings.ToLower(name), "barcode")
}

// describeField builds the descriptors of one field's widgets. Widgets that
// are on no known page or lack a usable Rect are skipped.
func (fe *FormExtractor) describeField(doc *document.Document, field *document.Field, renderWidth float64) []annotation.FormFieldDescriptor {
	kind := field.Kind()
	value := fe.fieldValue(doc, field, kind)
	label := sampledata.CleanFieldName(field.Name)

	var maxLength *uint32
	if kind == annotation.FieldKindText && field.MaxLen > 0 {
		ml := uint32(field.MaxLen)
		maxLength = &ml
	}

	var options []string
	if kind == annotation.FieldKindRadio || kind == annotation.FieldKindSelect {
		options = doc.Options(field)
	}

	var out []annotation.FormFieldDescriptor
	for _, w := range field.Widgets {
		page := doc.Page(w.Page)
		if page == nil || !w.HasRect {
			fe.logger.Debug().Str("field", field.Name).Int("widget", w.Index).Msg("widget has no page or rect")
			continue
		}
		out = append(out, annotation.FormFieldDescriptor{
			ID:        fmt.Sprintf("field-%d-%d", field.Index, w.Index),
			Name:      field.Name,
			Label:     label,
			Kind:      kind,
			Value:     value,
			Rect:      geometry.ToRenderSpace(page.FromPageSpace(w.Rect), page.Geometry, renderWidth),
			Page:      page.Number,
			MaxLength: maxLength,
			Options:   options,
			ReadOnly:  field.Ff&document.FlagReadOnly != 0,
		})
	}
	return out
}

// fieldValue reads the current value as the string the store carries:
// "true"/"false" for checkboxes, the export state for radios, text
// otherwise.
func (fe *FormExtractor) fieldValue(doc *document.Document, field *document.Field, kind annotation.FieldKind) string {
	v := field.Value(doc)

	switch kind {
	case annotation.FieldKindCheckbox:
		if name := doc.Name(v); name != "" {
			return strconv.FormatBool(name != "Off")
		}
		for _, w := range field.Widgets {
			if as := doc.Name(w.Dict["AS"]); as != "" && as != "Off" {
				return "true"
			}
		}
		return "false"

	case annotation.FieldKindRadio:
		if name := doc.Name(v); name != "" && name != "Off" {
			return name
		}
		for _, w := range field.Widgets {
			if as := doc.Name(w.Dict["AS"]); as != "" && as != "Off" {
				return as
			}
		}
		return ""

	case annotation.FieldKindSelect:
		if s := doc.String(v); s != "" {
			return s
		}
		// multi-select: first selected entry
		if arr, err := doc.Ctx.DereferenceArray(v); err == nil && len(arr) > 0 {
			return doc.String(arr[0])
		}
		return ""

	default:
		if s := doc.String(v); s != "" {
			return s
		}
		// some producers store text values as names
		if _, isName := v.(types.Name); isName {
			return doc.Name(v)
		}
		return ""
	}
}
