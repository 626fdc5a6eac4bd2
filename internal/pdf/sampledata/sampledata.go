// Package sampledata loads canned field values and proposes them for the
// fields of a document.
package sampledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
)

// Record is one canned value.
type Record struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Label string `json:"label" yaml:"label" toml:"label"`
	Value string `json:"value" yaml:"value" toml:"value"`
	Type  string `json:"type" yaml:"type" toml:"type"`
}

// File is the sample data document: {"formFields": [...]}.
type File struct {
	FormFields []Record `json:"formFields" yaml:"formFields" toml:"formFields"`
}

// Format names accepted by Parse.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Load reads a sample data file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample data: %w", err)
	}
	return Parse(data, FormatForPath(path))
}

// Parse decodes sample data in the given format.
func Parse(data []byte, format string) (*File, error) {
	var f File
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported sample data format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s sample data: %w", format, err)
	}
	return &f, nil
}

// Match is a proposed value for one field widget.
type Match struct {
	FieldID   string `json:"field_id"`
	FieldName string `json:"field_name"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Sample    string `json:"sample"`
	By        string `json:"matched_by"`
}

// Matching strategies, strongest first.
const (
	ByName  = "name"
	ByLabel = "label"
	ByKey   = "key"
)

// MatchFields proposes a value for every field some record matches. A record
// matches a field by exact raw name, by label, or by the normalized last
// segment of the raw name. Barcode fields are never matched.
func MatchFields(fields []annotation.FormFieldDescriptor, records []Record) []Match {
	var matches []Match
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), "barcode") {
			continue
		}
		if r, by, ok := bestRecord(f, records); ok {
			matches = append(matches, Match{
				FieldID:   f.ID,
				FieldName: f.Name,
				Label:     f.Label,
				Value:     r.Value,
				Sample:    r.Name,
				By:        by,
			})
		}
	}
	return matches
}

func bestRecord(f annotation.FormFieldDescriptor, records []Record) (Record, string, bool) {
	for _, r := range records {
		if r.Name != "" && r.Name == f.Name {
			return r, ByName, true
		}
	}

	label := f.Label
	if label == "" {
		label = CleanFieldName(f.Name)
	}
	for _, r := range records {
		if r.Label != "" && strings.EqualFold(r.Label, label) {
			return r, ByLabel, true
		}
	}

	fieldKey := normalizeKey(lastSegment(f.Name))
	if fieldKey == "" {
		return Record{}, "", false
	}
	for _, r := range records {
		if normalizeKey(r.Name) == fieldKey {
			return r, ByKey, true
		}
	}
	return Record{}, "", false
}

// Apply writes matched values into the store and returns how many widgets
// were updated.
func Apply(store *annotation.Store, matches []Match) int {
	n := 0
	for _, m := range matches {
		if err := store.UpdateFieldValue(m.FieldID, m.Value); err == nil {
			n++
		}
	}
	return n
}

func lastSegment(name string) string {
	name = indexSuffix.ReplaceAllString(name, "")
	parts := segmentSep.Split(name, -1)
	return knownPrefix.ReplaceAllString(parts[len(parts)-1], "")
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
