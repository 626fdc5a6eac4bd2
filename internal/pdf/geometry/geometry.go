// Package geometry converts rectangles between PDF page space and the
// render space of an on-screen preview.
//
// PDF space has its origin at the bottom-left corner of the page and uses
// points (1/72 inch). Render space has its origin at the top-left corner and
// uses whatever unit the viewer used when it displayed the page.
package geometry

import "math"

// DefaultPageWidth and DefaultPageHeight describe US Letter, used when a page
// carries no usable MediaBox.
const (
	DefaultPageWidth  = 612.0
	DefaultPageHeight = 792.0
)

// Rect is an axis aligned rectangle. Whether Y is measured from the top or the
// bottom depends on the space the rectangle belongs to.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageGeometry is the native size of a page in points.
type PageGeometry struct {
	WidthPts  float64 `json:"width_pts"`
	HeightPts float64 `json:"height_pts"`
}

// RenderSnapshot records the displayed page size at the moment an annotation
// was authored.
type RenderSnapshot struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the snapshot is absent.
func (s RenderSnapshot) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Valid reports whether the geometry can be used as a divisor.
func (g PageGeometry) Valid() bool {
	return g.WidthPts > 0 && g.HeightPts > 0
}

// RenderScale returns the factor that maps page points to render units for a
// preview of the given width. A non-positive width means "render at 1:1".
func RenderScale(g PageGeometry, renderWidth float64) float64 {
	if renderWidth <= 0 || g.WidthPts <= 0 {
		return 1
	}
	return renderWidth / g.WidthPts
}

// ToRenderSpace converts a bottom-left origin PDF rectangle into a top-left
// origin render rectangle.
func ToRenderSpace(pdfRect Rect, g PageGeometry, renderWidth float64) Rect {
	scale := RenderScale(g, renderWidth)
	return Rect{
		X:      pdfRect.X * scale,
		Y:      (g.HeightPts - pdfRect.Y - pdfRect.Height) * scale,
		Width:  pdfRect.Width * scale,
		Height: pdfRect.Height * scale,
	}
}

// Scales returns the horizontal and vertical factors mapping render units of
// the snapshot to page points. An absent snapshot yields 1:1.
func Scales(s RenderSnapshot, g PageGeometry) (float64, float64) {
	if s.IsZero() || !g.Valid() {
		return 1, 1
	}
	return g.WidthPts / s.Width, g.HeightPts / s.Height
}

// ToPdfSpace converts a top-left origin render rectangle authored against the
// snapshot into a bottom-left origin PDF rectangle on a page of geometry g.
func ToPdfSpace(renderRect Rect, s RenderSnapshot, g PageGeometry) Rect {
	scaleX, scaleY := Scales(s, g)
	pdfX := renderRect.X * scaleX
	pdfY := renderRect.Y * scaleY
	pdfW := renderRect.Width * scaleX
	pdfH := renderRect.Height * scaleY
	return Rect{
		X:      pdfX,
		Y:      g.HeightPts - pdfY - pdfH,
		Width:  pdfW,
		Height: pdfH,
	}
}

// ScaleScalar converts a linear length authored in render units (a font size,
// a padding) into points. Lengths follow the vertical scale.
func ScaleScalar(v float64, s RenderSnapshot, g PageGeometry) float64 {
	_, scaleY := Scales(s, g)
	return v * scaleY
}

// SnapshotFor returns the snapshot a viewer rendering the page at renderWidth
// would record, preserving the page aspect ratio.
func SnapshotFor(g PageGeometry, renderWidth float64) RenderSnapshot {
	scale := RenderScale(g, renderWidth)
	return RenderSnapshot{Width: g.WidthPts * scale, Height: g.HeightPts * scale}
}

// Normalize returns the rectangle spanned by two corner points, with
// non-negative width and height.
func Normalize(x1, y1, x2, y2 float64) Rect {
	return Rect{
		X:      math.Min(x1, x2),
		Y:      math.Min(y1, y2),
		Width:  math.Abs(x2 - x1),
		Height: math.Abs(y2 - y1),
	}
}

// ApproxEqual compares two rectangles with a relative tolerance.
func ApproxEqual(a, b Rect, tol float64) bool {
	return approx(a.X, b.X, tol) && approx(a.Y, b.Y, tol) &&
		approx(a.Width, b.Width, tol) && approx(a.Height, b.Height, tol)
}

func approx(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	return diff <= tol*math.Max(math.Abs(a), math.Abs(b))
}
