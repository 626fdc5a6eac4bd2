package annotation

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// Default placement and minimum sizes of new overlays, in render units.
const (
	DefaultOverlayX         = 100
	DefaultOverlayY         = 100
	DefaultSignatureWidth   = 200
	DefaultSignatureHeight  = 100
	DefaultTextWidth        = 200
	DefaultTextHeight       = 50
	MinSignatureWidth       = 50
	MinSignatureHeight      = 25
	MinTextWidth            = 100
	MinTextHeight           = 30
	signatureIDPrefix       = "sig-"
	textIDPrefix            = "text-"
	defaultTextFontSizeUnit = 16
)

// ErrNotFound is returned when an id matches nothing in the store.
var ErrNotFound = errors.New("annotation not found")

// Store is the state of one editing session. It is owned by the caller and is
// not safe for concurrent mutation; callers serialize access.
type Store struct {
	Fields     []FormFieldDescriptor
	Signatures []SignatureAnnotation
	Texts      []TextAnnotation

	loaded map[string]string // field id -> value as loaded
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the whole session with the descriptors of a newly loaded
// document. Overlays of the previous document are discarded.
func (s *Store) Load(fields []FormFieldDescriptor) {
	s.Fields = append([]FormFieldDescriptor(nil), fields...)
	s.Signatures = nil
	s.Texts = nil
	s.loaded = make(map[string]string, len(fields))
	for _, f := range fields {
		s.loaded[f.ID] = f.Value
	}
}

// EditedFields returns the descriptors whose value differs from the value
// they were loaded with, in store order.
func (s *Store) EditedFields() []FormFieldDescriptor {
	var out []FormFieldDescriptor
	for _, f := range s.Fields {
		if v, ok := s.loaded[f.ID]; ok && v == f.Value {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Field returns the descriptor with the given id.
func (s *Store) Field(id string) (FormFieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FormFieldDescriptor{}, false
}

// UpdateFieldValue sets the value of one field widget.
func (s *Store) UpdateFieldValue(id, value string) error {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			s.Fields[i].Value = value
			return nil
		}
	}
	return fmt.Errorf("field %s: %w", id, ErrNotFound)
}

// UpdateFieldValueByName sets the value of every widget of the named field
// and returns how many widgets were updated.
func (s *Store) UpdateFieldValueByName(name, value string) int {
	n := 0
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			s.Fields[i].Value = value
			n++
		}
	}
	return n
}

// AddSignature places an image given as a data URI on a page, using the
// viewer snapshot current at creation time.
func (s *Store) AddSignature(dataURI string, page int, snapshot geometry.RenderSnapshot) (SignatureAnnotation, error) {
	mediaType, data, err := ParseDataURI(dataURI)
	if err != nil {
		return SignatureAnnotation{}, fmt.Errorf("invalid signature image: %w", err)
	}
	return s.AddSignatureBytes(data, mediaType, page, snapshot), nil
}

// AddSignatureBytes places raw image bytes on a page.
func (s *Store) AddSignatureBytes(data []byte, mediaType string, page int, snapshot geometry.RenderSnapshot) SignatureAnnotation {
	sig := SignatureAnnotation{
		ID:         signatureIDPrefix + uuid.NewString(),
		ImageBytes: data,
		MediaType:  mediaType,
		Rect: geometry.Rect{
			X:      DefaultOverlayX,
			Y:      DefaultOverlayY,
			Width:  DefaultSignatureWidth,
			Height: DefaultSignatureHeight,
		},
		Page:           page,
		RenderSnapshot: snapshot,
	}
	s.Signatures = append(s.Signatures, sig)
	return sig
}

// AddText places a text block on a page. A non-positive font size uses the
// default size.
func (s *Store) AddText(text string, fontSize float64, page int, snapshot geometry.RenderSnapshot) TextAnnotation {
	if fontSize <= 0 {
		fontSize = defaultTextFontSizeUnit
	}
	ta := TextAnnotation{
		ID:   textIDPrefix + uuid.NewString(),
		Text: text,
		Rect: geometry.Rect{
			X:      DefaultOverlayX,
			Y:      DefaultOverlayY,
			Width:  DefaultTextWidth,
			Height: DefaultTextHeight,
		},
		FontSizePts:    fontSize,
		Page:           page,
		RenderSnapshot: snapshot,
	}
	s.Texts = append(s.Texts, ta)
	return ta
}

// Move sets the top-left corner of an overlay.
func (s *Store) Move(id string, x, y float64) error {
	if r := s.overlayRect(id); r != nil {
		r.X, r.Y = x, y
		return nil
	}
	return fmt.Errorf("overlay %s: %w", id, ErrNotFound)
}

// Resize sets the size of an overlay, clamped to the minimum size of its kind.
func (s *Store) Resize(id string, width, height float64) error {
	for i := range s.Signatures {
		if s.Signatures[i].ID == id {
			s.Signatures[i].Rect.Width = math.Max(MinSignatureWidth, width)
			s.Signatures[i].Rect.Height = math.Max(MinSignatureHeight, height)
			return nil
		}
	}
	for i := range s.Texts {
		if s.Texts[i].ID == id {
			s.Texts[i].Rect.Width = math.Max(MinTextWidth, width)
			s.Texts[i].Rect.Height = math.Max(MinTextHeight, height)
			return nil
		}
	}
	return fmt.Errorf("overlay %s: %w", id, ErrNotFound)
}

// Delete removes an overlay.
func (s *Store) Delete(id string) error {
	for i := range s.Signatures {
		if s.Signatures[i].ID == id {
			s.Signatures = append(s.Signatures[:i], s.Signatures[i+1:]...)
			return nil
		}
	}
	for i := range s.Texts {
		if s.Texts[i].ID == id {
			s.Texts = append(s.Texts[:i], s.Texts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("overlay %s: %w", id, ErrNotFound)
}

func (s *Store) overlayRect(id string) *geometry.Rect {
	for i := range s.Signatures {
		if s.Signatures[i].ID == id {
			return &s.Signatures[i].Rect
		}
	}
	for i := range s.Texts {
		if s.Texts[i].ID == id {
			return &s.Texts[i].Rect
		}
	}
	return nil
}
