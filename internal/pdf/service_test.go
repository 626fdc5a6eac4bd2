package pdf

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/logging"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/sampledata"
)

const formFile = "form.pdf"

func newTestService(t *testing.T, mutate ...func(*config.Config)) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, formFile), pdftest.FormPDF(), 0o600))

	cfg := config.DefaultConfig()
	cfg.PDFDirectory = dir
	cfg.RenderWidth = pdftest.LetterWidth
	cfg.SampleDataPath = filepath.Join(dir, config.DefaultSampleDataFile)
	for _, m := range mutate {
		m(cfg)
	}

	svc, err := NewService(cfg, logging.Discard())
	require.NoError(t, err)
	return svc, svc.ConfiguredDirectory()
}

func byName(fields []annotation.FormFieldDescriptor, name string) (annotation.FormFieldDescriptor, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return annotation.FormFieldDescriptor{}, false
}

func TestNewService(t *testing.T) {
	svc, dir := newTestService(t)
	assert.NotNil(t, svc.extractor)
	assert.NotNil(t, svc.engine)
	assert.Equal(t, export.FlattenBake, svc.engine.Options().Flatten)
	assert.True(t, filepath.IsAbs(dir))

	cfg := config.DefaultConfig()
	cfg.Flatten = "burn"
	_, err := NewService(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestExtractFieldsAsync(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	want := svc.ExtractFields(ctx, pdftest.FormPDF(), 0)
	ch := svc.ExtractFieldsAsync(ctx, pdftest.FormPDF(), 0)

	got, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = <-ch
	assert.False(t, ok, "channel delivers exactly one value")
}

func TestExportAsync(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fields := svc.ExtractFields(ctx, pdftest.FormPDF(), 0)
	ch := svc.ExportAsync(ctx, pdftest.FormPDF(), fields, nil, nil)

	outcome, ok := <-ch
	require.True(t, ok)
	require.NoError(t, outcome.Err)
	assert.Equal(t, export.StatusComplete, outcome.Result.Status)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestExportAsync_Cancelled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := <-svc.ExportAsync(ctx, pdftest.FormPDF(), nil, nil, nil)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Nil(t, outcome.Result)
}

func TestPreview_KeepsForm(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	store := annotation.NewStore()
	store.Load(svc.ExtractFields(ctx, pdftest.FormPDF(), 0))
	require.Equal(t, 2, store.UpdateFieldValueByName(pdftest.Choice, "B"))

	out, err := svc.Preview(ctx, pdftest.FormPDF(), store)
	require.NoError(t, err)

	fields := svc.ExtractFields(ctx, out, 0)
	choice, ok := byName(fields, pdftest.Choice)
	require.True(t, ok)
	assert.Equal(t, "B", choice.Value)
	assert.False(t, choice.ReadOnly)
}

func TestSave_DefaultName(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	store := annotation.NewStore()
	store.Load(svc.ExtractFields(ctx, pdftest.FormPDF(), 0))
	require.Equal(t, 1, store.UpdateFieldValueByName(pdftest.GivenName, "Ana"))

	path, res, err := svc.Save(ctx, formFile, store, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "edited_form.pdf"), path)
	assert.Equal(t, export.StatusComplete, res.Status)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, written)

	doc, err := document.Open(ctx, written)
	require.NoError(t, err)
	form, err := doc.AcroForm()
	require.NoError(t, err)
	assert.Nil(t, form, "bake flattening removes the form")
}

func TestSave_RejectedOutputs(t *testing.T) {
	svc, _ := newTestService(t)
	store := annotation.NewStore()

	tests := []struct {
		name   string
		output string
	}{
		{"outside directory", "../escaped.pdf"},
		{"missing parent", "nope/out.pdf"},
		{"overwrite source", formFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Save(context.Background(), formFile, store, tt.output)
			assert.Error(t, err)
		})
	}

	_, _, err := svc.Save(context.Background(), "missing.pdf", store, "")
	assert.Error(t, err)
}

func TestPDFExtractFields(t *testing.T) {
	svc, dir := newTestService(t)

	result, err := svc.PDFExtractFields(context.Background(), PDFExtractFieldsRequest{Path: formFile, RenderWidth: 1224})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, formFile), result.Path)
	assert.Equal(t, 1224.0, result.RenderWidth)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, geometry.RenderSnapshot{Width: 1224, Height: 1584}, result.Pages[0].Snapshot)

	given, ok := byName(result.Fields, pdftest.GivenName)
	require.True(t, ok)
	assert.Equal(t, geometry.Rect{X: 100, Y: 144, Width: 200, Height: 40}, given.Rect)

	_, ok = byName(result.Fields, pdftest.Barcode)
	assert.False(t, ok)
}

func TestPDFExtractFields_Unparsable(t *testing.T) {
	svc, dir := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), pdftest.Corrupt(), 0o600))

	result, err := svc.PDFExtractFields(context.Background(), PDFExtractFieldsRequest{Path: "broken.pdf"})
	require.NoError(t, err)
	assert.Empty(t, result.Fields)
	assert.Empty(t, result.Pages)
}

func TestPDFExtractFields_RejectsNonPDF(t *testing.T) {
	svc, dir := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o600))

	_, err := svc.PDFExtractFields(context.Background(), PDFExtractFieldsRequest{Path: "notes.txt"})
	assert.Error(t, err)

	_, err = svc.PDFExtractFields(context.Background(), PDFExtractFieldsRequest{Path: "/etc/passwd"})
	assert.Error(t, err)
}

func TestPDFExport(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	result, err := svc.PDFExport(ctx, PDFExportRequest{
		Path: formFile,
		Annotations: Annotations{
			Values: map[string]string{
				pdftest.GivenName: "Ana",
				"field-1-0":       "true",
				"DoesNotExist":    "x",
			},
			Texts: []TextInput{
				{Text: "Approved", Page: 1, Rect: &geometry.Rect{X: 300, Y: 40, Width: 200, Height: 50}},
			},
		},
		Output:  "out.pdf",
		Flatten: "lock",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out.pdf"), result.Output)
	assert.Equal(t, export.StatusPartial, result.Status)
	assert.Equal(t, "lock", result.Flatten)
	assert.Equal(t, 2, result.FieldsApplied)
	assert.Equal(t, 1, result.TextsApplied)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "FIELD_WRITE_FAILURE", result.Skipped[0].Type)
	assert.Equal(t, "DoesNotExist", result.Skipped[0].Item)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	assert.Equal(t, int64(len(out)), result.Size)

	fields := svc.ExtractFields(ctx, out, 0)
	given, ok := byName(fields, pdftest.GivenName)
	require.True(t, ok)
	assert.Equal(t, "Ana", given.Value)
	assert.True(t, given.ReadOnly)

	agree, ok := byName(fields, pdftest.Agree)
	require.True(t, ok)
	assert.Equal(t, "true", agree.Value)
}

func TestPDFExport_WritesOnlyRequestedFields(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.PDFExport(context.Background(), PDFExportRequest{
		Path:        formFile,
		Annotations: Annotations{Values: map[string]string{pdftest.GivenName: "Ana"}},
		Flatten:     "none",
	})
	require.NoError(t, err)
	assert.Equal(t, export.StatusComplete, result.Status)
	assert.Equal(t, 1, result.FieldsApplied)
	assert.Zero(t, result.SampleValues)
}

func TestPDFExport_KeepsPrefilledValues(t *testing.T) {
	svc, dir := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prefilled.pdf"), pdftest.PrefilledPDF(), 0o600))

	result, err := svc.PDFExport(context.Background(), PDFExportRequest{
		Path:        "prefilled.pdf",
		Annotations: Annotations{Values: map[string]string{pdftest.Keep: ""}},
		Flatten:     "none",
	})
	require.NoError(t, err)
	assert.Equal(t, export.StatusComplete, result.Status)
	assert.Zero(t, result.FieldsApplied)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	keep, ok := byName(svc.ExtractFields(context.Background(), out, 0), pdftest.Keep)
	require.True(t, ok)
	assert.Equal(t, "Original", keep.Value)
}

func TestPDFExport_ApplySample(t *testing.T) {
	svc, dir := newTestService(t)
	sample := `{"formFields": [
		{"name": "GivenName", "value": "Ana"},
		{"name": "street", "value": "Calle Mayor 5"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.json"), []byte(sample), 0o600))

	result, err := svc.PDFExport(context.Background(), PDFExportRequest{
		Path:        formFile,
		Annotations: Annotations{Values: map[string]string{pdftest.GivenName: "Bea"}},
		SamplePath:  "sample.json",
		Flatten:     "none",
	})
	require.NoError(t, err)
	assert.Equal(t, export.StatusComplete, result.Status)
	assert.Equal(t, 2, result.SampleValues)
	assert.Equal(t, 2, result.FieldsApplied)

	out, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	fields := svc.ExtractFields(context.Background(), out, 0)
	given, ok := byName(fields, pdftest.GivenName)
	require.True(t, ok)
	assert.Equal(t, "Bea", given.Value, "explicit values override sample values")
	street, ok := byName(fields, pdftest.Street)
	require.True(t, ok)
	assert.Equal(t, "Calle Mayor 5", street.Value)

	_, err = svc.PDFExport(context.Background(), PDFExportRequest{Path: formFile, ApplySample: true})
	assert.Error(t, err, "configured sample data file does not exist")
}

func TestPDFExport_InvalidFlatten(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.PDFExport(context.Background(), PDFExportRequest{Path: formFile, Flatten: "burn"})
	assert.Error(t, err)
}

func TestPDFExport_Signatures(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.PDFExport(context.Background(), PDFExportRequest{
		Path: formFile,
		Annotations: Annotations{
			Signatures: []SignatureInput{
				{Image: "data:image/png;base64,not-base64!", Page: 1},
				{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pdftest.PNG(8, 4, false)), Page: 1},
				{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pdftest.PNG(8, 4, false)), Page: 9},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SignaturesApplied)
	assert.Equal(t, export.StatusPartial, result.Status)

	kinds := map[string]int{}
	for _, s := range result.Skipped {
		kinds[s.Type]++
	}
	assert.Equal(t, map[string]int{"IMAGE_DECODE_FAILURE": 1, "INVALID_ANNOTATION": 1}, kinds)
}

func TestPDFMatchSampleData(t *testing.T) {
	svc, dir := newTestService(t)
	sample := `{"formFields": [
		{"name": "GivenName", "label": "Given Name", "value": "Ana"},
		{"name": "street", "value": "Calle Mayor 5"}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultSampleDataFile), []byte(sample), 0o600))

	result, err := svc.PDFMatchSampleData(context.Background(), PDFMatchSampleDataRequest{Path: formFile})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Records)
	byField := map[string]sampledata.Match{}
	for _, m := range result.Matches {
		byField[m.FieldName] = m
	}
	assert.Equal(t, "Ana", byField[pdftest.GivenName].Value)
	assert.Equal(t, sampledata.ByName, byField[pdftest.GivenName].By)
	assert.Equal(t, "Calle Mayor 5", byField[pdftest.Street].Value)
	assert.Equal(t, sampledata.ByKey, byField[pdftest.Street].By)

	_, err = svc.PDFMatchSampleData(context.Background(), PDFMatchSampleDataRequest{Path: formFile, SamplePath: "missing.json"})
	assert.Error(t, err)
}

func TestPDFReviewSheet(t *testing.T) {
	svc, dir := newTestService(t)

	result, err := svc.PDFReviewSheet(context.Background(), PDFReviewSheetRequest{Path: formFile, Pages: []int{1}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "review_form.pdf"), result.Output)
	assert.Equal(t, []int{1}, result.Pages)
	assert.Contains(t, result.Text, "GivenName: ")
	assert.NotContains(t, result.Text, "Barcode")

	info, err := os.Stat(result.Output)
	require.NoError(t, err)
	assert.Equal(t, result.Size, info.Size())
}

func TestPDFPageText(t *testing.T) {
	svc, dir := newTestService(t)
	plain, err := pdftest.PlainPDF("Hello world", "Second page")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.pdf"), plain, 0o600))

	result, err := svc.PDFPageText(PDFPageTextRequest{Path: "plain.pdf", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.Contains(t, result.Text, "Second")

	_, err = svc.PDFPageText(PDFPageTextRequest{Path: "plain.pdf", Page: 3})
	assert.Error(t, err)
}

func TestPDFValidateFile(t *testing.T) {
	svc, dir := newTestService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.pdf"), nil, 0o600))

	tests := []struct {
		name      string
		path      string
		wantValid bool
		wantForm  bool
	}{
		{"form", formFile, true, true},
		{"missing", "missing.pdf", false, false},
		{"empty", "empty.pdf", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.PDFValidateFile(context.Background(), PDFValidateFileRequest{Path: tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.Message)
			assert.Equal(t, tt.wantForm, result.HasForm)
		})
	}

	_, err := svc.PDFValidateFile(context.Background(), PDFValidateFileRequest{Path: "../outside.pdf"})
	assert.Error(t, err)
}
