// Command pdf_form_fields prints the form fields of a PDF as the server
// reports them, optionally with the values a sample data file proposes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/logging"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/sampledata"
)

// FormFieldsResult is the JSON output.
type FormFieldsResult struct {
	FilePath    string                           `json:"file_path"`
	RenderWidth float64                          `json:"render_width"`
	FieldCount  int                              `json:"field_count"`
	Fields      []annotation.FormFieldDescriptor `json:"fields"`
	Matches     []sampledata.Match               `json:"matches,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pdf_form_fields", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	format := flags.String("format", "text", "Output format: text, json")
	renderWidth := flags.Float64("render-width", config.DefaultRenderWidth, "Preview width rectangles are reported in")
	samplePath := flags.String("sample", "", "Sample data file to match against the fields")
	verbose := flags.Bool("verbose", false, "Log extraction details to stderr")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  pdf_form_fields [OPTIONS] <pdf_file>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		fmt.Fprintf(stderr, "Error: PDF file path required\n\n")
		flags.Usage()
		return 1
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stderr, "Error: unsupported output format: %s\n", *format)
		return 1
	}

	pdfPath := flags.Arg(0)
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	extractor := extraction.NewFormExtractor(logging.New(level, stderr))
	fields := extractor.Extract(context.Background(), data, *renderWidth)

	result := &FormFieldsResult{
		FilePath:    pdfPath,
		RenderWidth: *renderWidth,
		FieldCount:  len(fields),
		Fields:      fields,
	}
	if *samplePath != "" {
		file, err := sampledata.Load(*samplePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		result.Matches = sampledata.MatchFields(fields, file.FormFields)
	}

	if *format == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
			return 1
		}
		return 0
	}
	outputText(stdout, result)
	return 0
}

func outputText(w io.Writer, result *FormFieldsResult) {
	if result.FieldCount == 0 {
		fmt.Fprintln(w, "No form fields detected in the PDF")
		return
	}

	proposed := map[string]sampledata.Match{}
	for _, m := range result.Matches {
		proposed[m.FieldID] = m
	}

	fmt.Fprintf(w, "%d form field widgets in %s\n\n", result.FieldCount, result.FilePath)
	for i, field := range result.Fields {
		fmt.Fprintf(w, "[%d] %s (%s)\n", i+1, field.Name, field.ID)
		fmt.Fprintf(w, "    Label: %s\n", field.Label)
		fmt.Fprintf(w, "    Type: %s\n", field.Kind)
		if field.Value != "" {
			fmt.Fprintf(w, "    Value: %s\n", field.Value)
		}
		fmt.Fprintf(w, "    Page: %d\n", field.Page)
		fmt.Fprintf(w, "    Rect: x=%.1f y=%.1f w=%.1f h=%.1f\n",
			field.Rect.X, field.Rect.Y, field.Rect.Width, field.Rect.Height)
		if field.MaxLength != nil {
			fmt.Fprintf(w, "    Max Length: %d\n", *field.MaxLength)
		}
		if len(field.Options) > 0 {
			fmt.Fprintf(w, "    Options: %s\n", strings.Join(field.Options, ", "))
		}
		if field.ReadOnly {
			fmt.Fprintln(w, "    Read only")
		}
		if m, ok := proposed[field.ID]; ok {
			fmt.Fprintf(w, "    Sample: %s (by %s)\n", m.Value, m.By)
		}
		fmt.Fprintln(w)
	}
}
