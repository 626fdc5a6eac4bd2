package export

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-filler/internal/logging"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/pdftest"
)

func newEngine(mode FlattenMode) *Engine {
	return NewEngine(logging.Discard(), Options{Flatten: mode})
}

func reopen(t *testing.T, res *Result) *document.Document {
	t.Helper()
	require.NotNil(t, res)
	doc, err := document.Open(context.Background(), res.Bytes)
	require.NoError(t, err)
	return doc
}

func fieldByName(t *testing.T, doc *document.Document, name string) *document.Field {
	t.Helper()
	fields, err := doc.Fields()
	require.NoError(t, err)
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %q not found", name)
	return nil
}

func pageContent(t *testing.T, doc *document.Document, n int) string {
	t.Helper()
	content, err := doc.PageContent(doc.Page(n))
	require.NoError(t, err)
	return string(content)
}

func TestParseFlattenMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FlattenMode
		wantErr bool
	}{
		{"", FlattenBake, false},
		{"bake", FlattenBake, false},
		{" LOCK ", FlattenLock, false},
		{"none", FlattenNone, false},
		{"burn", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlattenMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExport_DegradedOnUnparsableSource(t *testing.T) {
	for name, src := range map[string][]byte{
		"corrupt": pdftest.Corrupt(),
		"empty":   {},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := newEngine(FlattenBake).Export(context.Background(), src,
				[]annotation.FormFieldDescriptor{{Name: pdftest.GivenName, Value: "Ana"}}, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, StatusDegraded, res.Status)
			assert.Equal(t, src, res.Bytes)
			assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeParseFailure))
			assert.Zero(t, res.FieldsApplied)
		})
	}
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newEngine(FlattenBake).Export(ctx, pdftest.FormPDF(), nil, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestExport_LockRoundTrip(t *testing.T) {
	res, err := newEngine(FlattenLock).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{{ID: "field-0-0", Name: pdftest.GivenName, Value: "Ana"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 1, res.FieldsApplied)
	assert.Equal(t, 6, res.Flattened)

	doc := reopen(t, res)
	f := fieldByName(t, doc, pdftest.GivenName)
	assert.Equal(t, "Ana", doc.String(f.Value(doc)))
	assert.NotZero(t, f.Ff&document.FlagReadOnly)
	require.Len(t, f.Widgets, 1)
	_, hasAP := f.Widgets[0].Dict.Find("AP")
	assert.True(t, hasAP)

	street := fieldByName(t, doc, pdftest.Street)
	assert.NotZero(t, street.Ff&document.FlagReadOnly)
}

func TestExport_NonASCIIValue(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{{Name: pdftest.GivenName, Value: "José"}}, nil, nil)
	require.NoError(t, err)

	doc := reopen(t, res)
	f := fieldByName(t, doc, pdftest.GivenName)
	assert.Equal(t, "José", doc.String(f.Value(doc)))
}

func TestExport_BakeRemovesForm(t *testing.T) {
	res, err := newEngine(FlattenBake).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{
			{Name: pdftest.GivenName, Value: "Ana"},
			{Name: pdftest.Agree, Value: "true"},
		}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 7, res.Flattened)

	doc := reopen(t, res)
	form, err := doc.AcroForm()
	require.NoError(t, err)
	assert.Nil(t, form)

	_, hasAnnots := doc.Page(1).Dict.Find("Annots")
	assert.False(t, hasAnnots)

	content := pageContent(t, doc, 1)
	assert.Contains(t, content, "(Application Form)")
	assert.Contains(t, content, "/Fm1 Do")
	assert.Less(t, strings.Index(content, "(Application Form)"), strings.Index(content, "/Fm1 Do"))
}

func TestExport_PartialFailure(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{
			{Name: pdftest.GivenName, Value: "Ana"},
			{Name: "DoesNotExist", Value: "x"},
			{Name: pdftest.Street, Value: "Calle Mayor 5"},
		}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 2, res.FieldsApplied)

	skipped := res.Skipped.All()
	require.Len(t, skipped, 1)
	assert.Equal(t, pdferrors.ErrorTypeFieldWriteFailure, skipped[0].Type)
	assert.Equal(t, "DoesNotExist", skipped[0].Item)

	doc := reopen(t, res)
	assert.Equal(t, "Ana", doc.String(fieldByName(t, doc, pdftest.GivenName).Value(doc)))
	assert.Equal(t, "Calle Mayor 5", doc.String(fieldByName(t, doc, pdftest.Street).Value(doc)))
}

func TestExport_EmptyValuesLeaveFieldsUntouched(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.PrefilledPDF(),
		[]annotation.FormFieldDescriptor{
			{Name: pdftest.Keep, Value: ""},
			{Name: "Ghost", Value: ""},
		}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Zero(t, res.FieldsApplied)
	assert.Empty(t, res.Skipped.All())

	doc := reopen(t, res)
	keep := fieldByName(t, doc, pdftest.Keep)
	assert.Equal(t, "Original", doc.String(keep.Value(doc)))
	_, hasAP := keep.Widgets[0].Dict.Find("AP")
	assert.False(t, hasAP, "no appearance is generated for an untouched field")
}

func TestExport_MaxLength(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{{Name: pdftest.GivenName, Value: strings.Repeat("a", 21)}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Zero(t, res.FieldsApplied)
	assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeFieldWriteFailure))
}

func TestExport_DuplicateDescriptorsLastNonEmptyWins(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{
			{ID: "field-2-0", Name: pdftest.Choice, Value: "A"},
			{ID: "field-2-1", Name: pdftest.Choice, Value: ""},
		}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FieldsApplied)

	doc := reopen(t, res)
	assert.Equal(t, "A", doc.Name(fieldByName(t, doc, pdftest.Choice).Value(doc)))
}

func TestExport_ButtonsAndChoice(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{
			{Name: pdftest.Agree, Value: "true"},
			{Name: pdftest.Choice, Value: "b"},
			{Name: pdftest.Country, Value: "Canada"},
		}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 3, res.FieldsApplied)

	doc := reopen(t, res)

	agree := fieldByName(t, doc, pdftest.Agree)
	assert.Equal(t, "Yes", doc.Name(agree.Value(doc)))
	assert.Equal(t, "Yes", doc.Name(agree.Widgets[0].Dict["AS"]))

	choice := fieldByName(t, doc, pdftest.Choice)
	assert.Equal(t, "B", doc.Name(choice.Value(doc)))
	require.Len(t, choice.Widgets, 2)
	assert.Equal(t, "Off", doc.Name(choice.Widgets[0].Dict["AS"]))
	assert.Equal(t, "B", doc.Name(choice.Widgets[1].Dict["AS"]))

	country := fieldByName(t, doc, pdftest.Country)
	assert.Equal(t, "CA", doc.String(country.Value(doc)))
}

func TestExport_UnknownRadioState(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.FormPDF(),
		[]annotation.FormFieldDescriptor{{Name: pdftest.Choice, Value: "Z"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeFieldWriteFailure))
}

func TestExport_Signature(t *testing.T) {
	sig := annotation.SignatureAnnotation{
		ID:             "sig-1",
		ImageBytes:     pdftest.PNG(40, 20, true),
		Rect:           geometry.Rect{X: 100, Y: 100, Width: 200, Height: 100},
		Page:           1,
		RenderSnapshot: geometry.RenderSnapshot{Width: 612, Height: 792},
	}
	res, err := newEngine(FlattenBake).Export(context.Background(), pdftest.NoFormPDF(), nil,
		[]annotation.SignatureAnnotation{sig}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 1, res.SignaturesApplied)

	doc := reopen(t, res)
	assert.Contains(t, pageContent(t, doc, 1), "200 0 0 100 100 592 cm\n/Im1 Do")

	res1, err := doc.Resources(doc.Page(1))
	require.NoError(t, err)
	xobjects, err := doc.Ctx.DereferenceDict(res1["XObject"])
	require.NoError(t, err)
	sd, _, err := doc.Ctx.DereferenceStreamDict(xobjects["Im1"])
	require.NoError(t, err)
	require.NotNil(t, sd)
	assert.Equal(t, 40, doc.Int(sd.Dict["Width"], 0))
	_, hasMask := sd.Dict.Find("SMask")
	assert.True(t, hasMask)
}

func TestExport_SignatureFailures(t *testing.T) {
	sigs := []annotation.SignatureAnnotation{
		{ID: "off-page", ImageBytes: pdftest.PNG(4, 4, false), Rect: geometry.Rect{Width: 10, Height: 10}, Page: 3},
		{ID: "garbage", ImageBytes: []byte("not an image"), Rect: geometry.Rect{Width: 10, Height: 10}, Page: 1},
		{ID: "ok", ImageBytes: pdftest.JPEG(8, 8), MediaType: annotation.MediaTypeJPEG, Rect: geometry.Rect{Width: 10, Height: 10}, Page: 1},
	}
	res, err := newEngine(FlattenBake).Export(context.Background(), pdftest.NoFormPDF(), nil, sigs, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.SignaturesApplied)
	assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeInvalidAnnotation))
	assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeImageDecodeFailure))
}

func TestExport_TextOnSecondPage(t *testing.T) {
	text := annotation.TextAnnotation{
		ID:          "text-1",
		Text:        "Hello\nWorld (1)",
		Rect:        geometry.Rect{X: 72, Y: 100, Width: 200, Height: 50},
		FontSizePts: 12,
		Page:        2,
	}
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.MultiPagePDF(), nil, nil,
		[]annotation.TextAnnotation{text})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 1, res.TextsApplied)

	doc := reopen(t, res)
	content := pageContent(t, doc, 2)
	assert.Contains(t, content, "(Hello) Tj")
	assert.Contains(t, content, `(World \(1\)) Tj`)
	assert.Contains(t, content, "(Part two)")
	// top = 842-100 = 742, first baseline = 742 - 5 - 14.4
	assert.Contains(t, content, "1 0 0 1 77 722.6 Tm")
	assert.NotContains(t, pageContent(t, doc, 1), "Hello")

	res2, err := doc.Resources(doc.Page(2))
	require.NoError(t, err)
	fonts, err := doc.Ctx.DereferenceDict(res2["Font"])
	require.NoError(t, err)
	assert.Contains(t, fonts, "FHelv1")

	res1, err := doc.Resources(doc.Page(1))
	require.NoError(t, err)
	fonts1, err := doc.Ctx.DereferenceDict(res1["Font"])
	require.NoError(t, err)
	assert.NotContains(t, fonts1, "FHelv1")
}

func TestExport_TextScaledFromRenderSpace(t *testing.T) {
	g := geometry.PageGeometry{WidthPts: 612, HeightPts: 792}
	text := annotation.TextAnnotation{
		ID:             "text-1",
		Text:           "Scaled",
		Rect:           geometry.Rect{X: 100, Y: 100, Width: 200, Height: 50},
		FontSizePts:    32,
		Page:           1,
		RenderSnapshot: geometry.SnapshotFor(g, 1224),
	}
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.NoFormPDF(), nil, nil,
		[]annotation.TextAnnotation{text})
	require.NoError(t, err)

	doc := reopen(t, res)
	assert.Contains(t, pageContent(t, doc, 1), " 16 Tf")
}

func TestExport_TextOffPage(t *testing.T) {
	res, err := newEngine(FlattenNone).Export(context.Background(), pdftest.NoFormPDF(), nil, nil,
		[]annotation.TextAnnotation{{ID: "t", Text: "x", FontSizePts: 12, Page: 0}})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Skipped.CountType(pdferrors.ErrorTypeInvalidAnnotation))
}

func TestDownscale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	out := downscale(img, 100)
	assert.Equal(t, image.Rect(0, 0, 100, 25), out.Bounds())

	same := downscale(img, 1000)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestImageStreams_OpaqueHasNoAlpha(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	rgb, alpha := imageStreams(img)
	assert.Len(t, rgb, 18)
	assert.Nil(t, alpha)
}

func TestWinAnsi(t *testing.T) {
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9, ' ', 0x80}, WinAnsi("café €"))
	assert.Equal(t, []byte("?"), WinAnsi("日"))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "0", num(0))
	assert.Equal(t, "10", num(10))
	assert.Equal(t, "722.6", num(722.6))
	assert.Equal(t, "-1.5", num(-1.5))
	assert.Equal(t, "0", num(-0.00001))
}

func TestIsChecked(t *testing.T) {
	for _, v := range []string{"true", "Yes", "1", "on", " X "} {
		assert.True(t, IsChecked(v), v)
	}
	for _, v := range []string{"", "false", "off", "0", "no"} {
		assert.False(t, IsChecked(v), v)
	}
}
