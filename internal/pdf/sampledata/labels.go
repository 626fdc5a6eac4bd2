package sampledata

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	indexSuffix   = regexp.MustCompile(`\[\d+\]`)
	segmentSep    = regexp.MustCompile(`[./]`)
	knownPrefix   = regexp.MustCompile(`(?i)^(Pt\d+Line\d+[a-z]?_|#subform_|form\d+_)`)
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
)

// abbreviations are expanded or upper-cased after title casing.
var abbreviations = map[string]string{
	"uscis": "USCIS",
	"ssn":   "SSN",
	"ein":   "EIN",
	"id":    "ID",
	"dob":   "Date of Birth",
	"addr":  "Address",
	"apt":   "Apartment",
	"zip":   "ZIP Code",
	"po":    "PO",
}

// CleanFieldName derives a readable label from a raw field name, e.g.
// "form1[0].#subform[0].Pt1Line1b_GivenName[0]" becomes "Given Name". The
// label is cosmetic; raw names stay authoritative for matching and writing.
// Barcode fields keep their raw name.
func CleanFieldName(rawName string) string {
	if strings.Contains(strings.ToLower(rawName), "barcode") {
		return rawName
	}

	name := indexSuffix.ReplaceAllString(rawName, "")
	parts := segmentSep.Split(name, -1)
	name = parts[len(parts)-1]
	name = knownPrefix.ReplaceAllString(name, "")
	name = camelBoundary.ReplaceAllString(name, "$1 $2")

	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		if repl, ok := abbreviations[strings.ToLower(w)]; ok {
			words[i] = repl
			continue
		}
		words[i] = titleCase(w)
	}

	label := strings.TrimSpace(strings.Join(words, " "))
	if label == "" {
		return rawName
	}
	return label
}

func titleCase(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
