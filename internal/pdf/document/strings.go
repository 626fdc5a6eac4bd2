package document

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// TextString encodes s as a PDF text string: a literal for printable ASCII,
// UTF-16BE with a byte order mark otherwise.
func TextString(s string) (types.Object, error) {
	if isPrintableASCII(s) {
		return types.StringLiteral(EscapeString([]byte(s))), nil
	}
	enc, err := utf16BOM.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q as UTF-16: %w", s, err)
	}
	return types.HexLiteral(hex.EncodeToString([]byte(enc))), nil
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || (c < 0x20 && c != '\n' && c != '\r' && c != '\t') {
			return false
		}
	}
	return true
}

// EscapeString escapes raw bytes for use inside a PDF literal string.
func EscapeString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c > 0x7e {
				fmt.Fprintf(&sb, "\\%03o", c)
				continue
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
