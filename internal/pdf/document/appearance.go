package document

import (
	"strconv"
	"strings"
)

// FieldAppearance is the font and colour part of a default appearance (DA)
// string.
type FieldAppearance struct {
	FontName string
	FontSize float64
	// ColorOp is the non-stroking colour operator (g, rg or k) and Color its
	// operands. Empty means black.
	ColorOp string
	Color   []float64
}

// ParseDA parses a default appearance string such as "/Helv 12 Tf 0 g".
func ParseDA(da string) FieldAppearance {
	var fa FieldAppearance
	parts := strings.Fields(da)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "Tf":
			if i >= 2 {
				fa.FontName = strings.TrimPrefix(parts[i-2], "/")
				if size, err := strconv.ParseFloat(parts[i-1], 64); err == nil && size >= 0 {
					fa.FontSize = size
				}
			}
		case "rg":
			if i >= 3 {
				fa.ColorOp, fa.Color = "rg", parseOperands(parts[i-3:i])
			}
		case "g":
			if i >= 1 {
				fa.ColorOp, fa.Color = "g", parseOperands(parts[i-1:i])
			}
		case "k":
			if i >= 4 {
				fa.ColorOp, fa.Color = "k", parseOperands(parts[i-4:i])
			}
		}
	}
	return fa
}

func parseOperands(s []string) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		out[i] = f
	}
	return out
}

// ColorOperator renders the colour as a content stream operator, defaulting
// to black.
func (fa FieldAppearance) ColorOperator() string {
	if fa.ColorOp == "" || fa.Color == nil {
		return "0 g"
	}
	var b strings.Builder
	for _, c := range fa.Color {
		b.WriteString(strconv.FormatFloat(c, 'f', -1, 64))
		b.WriteByte(' ')
	}
	b.WriteString(fa.ColorOp)
	return b.String()
}
