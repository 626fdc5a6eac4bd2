// Package annotation holds the editing session state: the form fields
// recovered from a document and the signature and text overlays placed on it.
package annotation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// FieldKind is the category of a form field, decided once when the document
// is parsed.
type FieldKind int

const (
	FieldKindText FieldKind = iota
	FieldKindCheckbox
	FieldKindRadio
	FieldKindSelect
)

// String returns the wire name of the kind.
func (k FieldKind) String() string {
	switch k {
	case FieldKindCheckbox:
		return "checkbox"
	case FieldKindRadio:
		return "radio"
	case FieldKindSelect:
		return "select"
	default:
		return "text"
	}
}

// ParseFieldKind maps a wire name back to a kind. Unknown names are text.
func ParseFieldKind(s string) FieldKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checkbox":
		return FieldKindCheckbox
	case "radio":
		return FieldKindRadio
	case "select":
		return FieldKindSelect
	default:
		return FieldKindText
	}
}

// MarshalJSON encodes the kind by name.
func (k FieldKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name.
func (k *FieldKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field kind must be a string: %w", err)
	}
	*k = ParseFieldKind(s)
	return nil
}

// FormFieldDescriptor describes one widget of a form field. Rect is in render
// space as of extraction time; Name is the raw fully qualified field name used
// for matching when values are written back.
type FormFieldDescriptor struct {
	ID        string        `json:"id"`
	Name      string        `json:"name" validate:"required"`
	Label     string        `json:"label,omitempty"`
	Kind      FieldKind     `json:"type"`
	Value     string        `json:"value"`
	Rect      geometry.Rect `json:"rect"`
	Page      int           `json:"page" validate:"gte=0"`
	MaxLength *uint32       `json:"max_length,omitempty"`
	Options   []string      `json:"options,omitempty"`
	ReadOnly  bool          `json:"read_only,omitempty"`
}

// SignatureAnnotation is a raster image placed on a page. Rect is in render
// space relative to RenderSnapshot.
type SignatureAnnotation struct {
	ID             string                  `json:"id"`
	ImageBytes     []byte                  `json:"-"`
	MediaType      string                  `json:"media_type,omitempty"`
	Rect           geometry.Rect           `json:"rect"`
	Page           int                     `json:"page" validate:"gte=1"`
	RenderSnapshot geometry.RenderSnapshot `json:"render_snapshot"`
}

// TextAnnotation is free text placed on a page. FontSizePts is expressed in
// the same render units as Rect.
type TextAnnotation struct {
	ID             string                  `json:"id"`
	Text           string                  `json:"text"`
	Rect           geometry.Rect           `json:"rect"`
	FontSizePts    float64                 `json:"font_size" validate:"gt=0"`
	Page           int                     `json:"page" validate:"gte=1"`
	RenderSnapshot geometry.RenderSnapshot `json:"render_snapshot"`
}
