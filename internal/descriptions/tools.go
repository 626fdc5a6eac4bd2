package descriptions

import "sort"

// Tool names exposed by the server.
const (
	ToolExtractFields   = "pdf_extract_fields"
	ToolExport          = "pdf_export"
	ToolMatchSampleData = "pdf_match_sample_data"
	ToolReviewSheet     = "pdf_review_sheet"
	ToolPageText        = "pdf_page_text"
	ToolValidateFile    = "pdf_validate_file"
)

// Tool descriptions with practical examples and use cases

const (
	PDFExtractFieldsDescription = `List the interactive form fields of a PDF with their position on a rendered preview.

**When to use:** Before filling a form, to learn which fields exist, what kind they are and where they sit.

**Returns:** One descriptor per widget: id, raw name, readable label, type (text, checkbox, radio, select), current value, rectangle in render units (top-left origin), page, max length, options and read-only flag. Page sizes and the render snapshot of every page are included.

**Examples:**
• "List the fields of application.pdf"
• "Which fields are on page 2 of i-130.pdf, for a preview 1200 pixels wide?"

**Best practices:** Pass the render_width your preview uses so rectangles line up with it. Barcode fields are never listed.`

	PDFExportDescription = `Write field values, signature images and free text into a PDF and save the result.

**When to use:** To produce the filled copy of a form.

**Annotations JSON:**
{"values": {"<field id or raw name>": "<value>"},
 "signatures": [{"image": "data:image/png;base64,...", "page": 1, "rect": {"x":100,"y":100,"width":200,"height":100}}],
 "texts": [{"text": "Approved", "font_size": 16, "page": 1, "rect": {...}}]}

Checkboxes take true/false, radios take the state name, selects take the option. Rectangles are in render units of the preview; pass render_snapshot when the preview size differs from render_width.

**Sample data:** apply_sample prefills fields from the sample data file (or sample_path) before values are applied; explicit values win.

**Flatten:** bake (default) draws the fields into the page and removes the form, lock marks every field read-only, none keeps the form editable.

Only fields whose value changes are written; fields left empty keep what the document holds.

**Returns:** Output path, status (complete, partial, degraded), applied counts per kind and every skipped item with its reason.`

	PDFMatchSampleDataDescription = `Propose values for a form's fields from a sample data file.

**When to use:** To prefill a form from canned data before reviewing and exporting it.

**Sample file:** {"formFields": [{"name": "...", "label": "...", "value": "..."}]} as JSON, YAML or TOML. Defaults to the configured sample data file.

**Returns:** One match per field with the proposed value and whether it matched by raw name, by label or by the last segment of the name.`

	PDFReviewSheetDescription = `Render a review sheet listing "name: value" for the fields on selected pages.

**When to use:** To let someone check a filled form at a glance before it is exported.

**Returns:** The path of the sheet PDF (review_<name> by default) and the same listing as text.`

	PDFPageTextDescription = `Read back the plain text of one page of a PDF.

**When to use:** To verify an exported document, for example that a flattened value or a text overlay landed on the right page.`

	PDFValidateFileDescription = `Verify that a file is a readable PDF and whether it has a form.

**When to use:** Before extracting fields from an unknown file.

**Best practices:** Run this first in automated workflows; invalid files export in degraded mode, unchanged.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolExtractFields:   PDFExtractFieldsDescription,
	ToolExport:          PDFExportDescription,
	ToolMatchSampleData: PDFMatchSampleDataDescription,
	ToolReviewSheet:     PDFReviewSheetDescription,
	ToolPageText:        PDFPageTextDescription,
	ToolValidateFile:    PDFValidateFileDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
