package pdf

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/review"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/sampledata"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/security"
)

const (
	reviewPrefix = "review_"
	outputPerm   = 0o644
)

// Service handles PDF form operations by orchestrating the extraction,
// export and review components behind the configured directory.
type Service struct {
	logger         *log.Logger
	renderWidth    float64
	outputPrefix   string
	sampleDataPath string
	extractor      *extraction.FormExtractor
	engine         *export.Engine
	validator      *Validator
	textReader     *TextReader
	reviewer       *review.Renderer
	pathValidator  *security.PathValidator
}

// ExportOutcome is what ExportAsync delivers.
type ExportOutcome struct {
	Result *export.Result
	Err    error
}

// NewService creates a new PDF service with all components
func NewService(cfg *config.Config, logger *log.Logger) (*Service, error) {
	pathValidator, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	flatten, err := export.ParseFlattenMode(cfg.Flatten)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:         logger,
		renderWidth:    cfg.RenderWidth,
		outputPrefix:   cfg.OutputPrefix,
		sampleDataPath: cfg.SampleDataPath,
		extractor:      extraction.NewFormExtractor(logger),
		engine: export.NewEngine(logger, export.Options{
			Flatten:        flatten,
			MaxSignaturePx: cfg.MaxSignaturePx,
		}),
		validator:     NewValidator(logger, cfg.MaxFileSize),
		textReader:    NewTextReader(),
		reviewer:      review.NewRenderer(logger),
		pathValidator: pathValidator,
	}, nil
}

// ConfiguredDirectory returns the directory every path is confined to.
func (s *Service) ConfiguredDirectory() string {
	return s.pathValidator.Directory()
}

// ExtractFields returns the form field descriptors of a document, positioned
// for a preview renderWidth units wide. A non-positive width uses the
// configured one.
func (s *Service) ExtractFields(ctx context.Context, data []byte, renderWidth float64) []annotation.FormFieldDescriptor {
	return s.extractor.Extract(ctx, data, s.width(renderWidth))
}

// ExtractFieldsAsync runs ExtractFields in the background. The channel
// delivers exactly one value and is then closed.
func (s *Service) ExtractFieldsAsync(ctx context.Context, data []byte, renderWidth float64) <-chan []annotation.FormFieldDescriptor {
	ch := make(chan []annotation.FormFieldDescriptor, 1)
	go func() {
		defer close(ch)
		ch <- s.ExtractFields(ctx, data, renderWidth)
	}()
	return ch
}

// ExportDocument writes an editing session into a document with the
// configured flatten mode.
func (s *Service) ExportDocument(
	ctx context.Context,
	data []byte,
	fields []annotation.FormFieldDescriptor,
	signatures []annotation.SignatureAnnotation,
	texts []annotation.TextAnnotation,
) (*export.Result, error) {
	return s.engine.Export(ctx, data, fields, signatures, texts)
}

// ExportAsync runs ExportDocument in the background. The channel delivers
// exactly one outcome and is then closed.
func (s *Service) ExportAsync(
	ctx context.Context,
	data []byte,
	fields []annotation.FormFieldDescriptor,
	signatures []annotation.SignatureAnnotation,
	texts []annotation.TextAnnotation,
) <-chan ExportOutcome {
	ch := make(chan ExportOutcome, 1)
	go func() {
		defer close(ch)
		res, err := s.ExportDocument(ctx, data, fields, signatures, texts)
		ch <- ExportOutcome{Result: res, Err: err}
	}()
	return ch
}

// Preview exports the session with the form left interactive and returns
// only the bytes. Only fields edited since the store was loaded are written.
func (s *Service) Preview(ctx context.Context, data []byte, store *annotation.Store) ([]byte, error) {
	res, err := s.engine.WithFlatten(export.FlattenNone).Export(ctx, data, store.EditedFields(), store.Signatures, store.Texts)
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}

// Save exports the session of the file at sourcePath and writes the result.
// An empty output writes "<prefix><name>" next to the source. It returns the
// path written.
func (s *Service) Save(ctx context.Context, sourcePath string, store *annotation.Store, output string) (string, *export.Result, error) {
	source, data, err := s.readInput(sourcePath)
	if err != nil {
		return "", nil, err
	}
	return s.save(ctx, s.engine, source, data, store, output)
}

func (s *Service) save(
	ctx context.Context,
	engine *export.Engine,
	source string,
	data []byte,
	store *annotation.Store,
	output string,
) (string, *export.Result, error) {
	if output == "" {
		output = filepath.Join(filepath.Dir(source), s.outputPrefix+filepath.Base(source))
	}
	target, err := s.pathValidator.ResolveOutput(output)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}
	if target == source {
		return "", nil, fmt.Errorf("output would overwrite the source file: %s", output)
	}

	res, err := engine.Export(ctx, data, store.EditedFields(), store.Signatures, store.Texts)
	if err != nil {
		return "", nil, fmt.Errorf("export failed: %w", err)
	}
	if err := os.WriteFile(target, res.Bytes, outputPerm); err != nil {
		return "", nil, fmt.Errorf("failed to write %s: %w", target, err)
	}

	s.logger.Info().
		Str("source", source).
		Str("output", target).
		Str("status", res.Status.String()).
		Int("bytes", len(res.Bytes)).
		Msg("document saved")
	return target, res, nil
}

// PDFExtractFields lists the form fields of a file
func (s *Service) PDFExtractFields(ctx context.Context, req PDFExtractFieldsRequest) (*PDFExtractFieldsResult, error) {
	path, data, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}
	width := s.width(req.RenderWidth)

	result := &PDFExtractFieldsResult{
		Path:        path,
		RenderWidth: width,
		Pages:       []PageInfo{},
		Fields:      []annotation.FormFieldDescriptor{},
	}
	doc, err := document.Open(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn().Err(err).Str("path", path).Msg("document could not be parsed, no fields reported")
		return result, nil
	}
	for _, p := range doc.Pages() {
		result.Pages = append(result.Pages, PageInfo{
			Page:     p.Number,
			Geometry: p.Geometry,
			Snapshot: geometry.SnapshotFor(p.Geometry, width),
		})
	}
	result.Fields = s.extractor.ExtractFromDocument(doc, width)
	return result, nil
}

// PDFExport writes annotations into a file and saves the result
func (s *Service) PDFExport(ctx context.Context, req PDFExportRequest) (*PDFExportResult, error) {
	source, data, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}

	engine := s.engine
	if req.Flatten != "" {
		mode, err := export.ParseFlattenMode(req.Flatten)
		if err != nil {
			return nil, err
		}
		engine = engine.WithFlatten(mode)
	}

	var sample *sampledata.File
	if req.ApplySample || req.SamplePath != "" {
		if _, sample, err = s.loadSample(req.SamplePath); err != nil {
			return nil, err
		}
	}

	store, applied, rejected := s.buildStore(ctx, data, req.Annotations, sample, s.width(req.RenderWidth))
	output, res, err := s.save(ctx, engine, source, data, store, req.Output)
	if err != nil {
		return nil, err
	}
	for _, e := range rejected {
		res.Skipped.Add(e)
	}
	if res.Status == export.StatusComplete && len(rejected) > 0 {
		res.Status = export.StatusPartial
	}

	return &PDFExportResult{
		Path:              source,
		Output:            output,
		Size:              int64(len(res.Bytes)),
		Status:            res.Status,
		Flatten:           string(engine.Options().Flatten),
		SampleValues:      applied,
		FieldsApplied:     res.FieldsApplied,
		SignaturesApplied: res.SignaturesApplied,
		TextsApplied:      res.TextsApplied,
		Flattened:         res.Flattened,
		Skipped:           skippedItems(res.Skipped),
	}, nil
}

// buildStore turns request annotations into an editing session over the
// document's own fields. Sample values, when given, are applied first and
// explicit values override them. It returns the number of widgets prefilled
// from the sample. Inputs that cannot enter the session are returned as
// errors to report alongside the export's own skips.
func (s *Service) buildStore(
	ctx context.Context,
	data []byte,
	ann Annotations,
	sample *sampledata.File,
	renderWidth float64,
) (*annotation.Store, int, []*pdferrors.PDFError) {
	store := annotation.NewStore()
	var rejected []*pdferrors.PDFError

	doc, err := document.Open(ctx, data)
	if err == nil {
		store.Load(s.extractor.ExtractFromDocument(doc, renderWidth))
	}

	applied := 0
	if sample != nil {
		applied = sampledata.Apply(store, sampledata.MatchFields(store.Fields, sample.FormFields))
	}

	for _, key := range slices.Sorted(maps.Keys(ann.Values)) {
		value := ann.Values[key]
		if _, ok := store.Field(key); ok {
			_ = store.UpdateFieldValue(key, value)
			continue
		}
		if store.UpdateFieldValueByName(key, value) == 0 && doc != nil {
			rejected = append(rejected, pdferrors.NewPDFError(pdferrors.ErrorTypeFieldWriteFailure, "no such field").WithItem(key))
		}
	}

	snapshot := func(page int, given *geometry.RenderSnapshot) geometry.RenderSnapshot {
		if given != nil {
			return *given
		}
		if doc != nil {
			if p := doc.Page(page); p != nil {
				return geometry.SnapshotFor(p.Geometry, renderWidth)
			}
		}
		return geometry.RenderSnapshot{}
	}

	for i, in := range ann.Signatures {
		sig, err := store.AddSignature(in.Image, in.Page, snapshot(in.Page, in.RenderSnapshot))
		if err != nil {
			rejected = append(rejected, pdferrors.WrapError(pdferrors.ErrorTypeImageDecodeFailure, err).
				WithItem(fmt.Sprintf("signature[%d]", i)).
				WithPage(in.Page))
			continue
		}
		placeOverlay(store, sig.ID, in.Rect)
	}

	for _, in := range ann.Texts {
		ta := store.AddText(in.Text, in.FontSize, in.Page, snapshot(in.Page, in.RenderSnapshot))
		placeOverlay(store, ta.ID, in.Rect)
	}

	return store, applied, rejected
}

func placeOverlay(store *annotation.Store, id string, rect *geometry.Rect) {
	if rect == nil {
		return
	}
	_ = store.Move(id, rect.X, rect.Y)
	_ = store.Resize(id, rect.Width, rect.Height)
}

// PDFMatchSampleData proposes sample values for the fields of a file
func (s *Service) PDFMatchSampleData(ctx context.Context, req PDFMatchSampleDataRequest) (*PDFMatchSampleDataResult, error) {
	path, data, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}

	samplePath, file, err := s.loadSample(req.SamplePath)
	if err != nil {
		return nil, err
	}

	fields := s.ExtractFields(ctx, data, 0)
	matches := sampledata.MatchFields(fields, file.FormFields)
	if matches == nil {
		matches = []sampledata.Match{}
	}
	return &PDFMatchSampleDataResult{
		Path:       path,
		SamplePath: samplePath,
		Records:    len(file.FormFields),
		Fields:     len(fields),
		Matches:    matches,
	}, nil
}

// loadSample resolves and reads a sample data file. An empty path uses the
// configured one.
func (s *Service) loadSample(samplePath string) (string, *sampledata.File, error) {
	if samplePath == "" {
		samplePath = s.sampleDataPath
	}
	resolved, err := s.pathValidator.ResolveInput(samplePath)
	if err != nil {
		return "", nil, fmt.Errorf("sample data: %w", err)
	}
	file, err := sampledata.Load(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, file, nil
}

// PDFReviewSheet renders the "name: value" summary of a file's fields
func (s *Service) PDFReviewSheet(ctx context.Context, req PDFReviewSheetRequest) (*PDFReviewSheetResult, error) {
	path, data, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}

	output := req.Output
	if output == "" {
		output = filepath.Join(filepath.Dir(path), reviewPrefix+filepath.Base(path))
	}
	target, err := s.pathValidator.ResolveOutput(output)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	sheet := review.New(filepath.Base(path), s.ExtractFields(ctx, data, 0), req.Pages)
	out, err := s.reviewer.Render(sheet)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(target, out, outputPerm); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", target, err)
	}

	pages := sheet.Pages
	if pages == nil {
		pages = []int{}
	}
	return &PDFReviewSheetResult{
		Path:   path,
		Output: target,
		Size:   int64(len(out)),
		Pages:  pages,
		Fields: len(sheet.Fields),
		Text:   sheet.Text(),
	}, nil
}

// PDFPageText reads back the text of one page of a file
func (s *Service) PDFPageText(req PDFPageTextRequest) (*PDFPageTextResult, error) {
	path, data, err := s.readInput(req.Path)
	if err != nil {
		return nil, err
	}
	text, pages, err := s.textReader.PageText(data, req.Page)
	if err != nil {
		return nil, err
	}
	return &PDFPageTextResult{Path: path, Page: req.Page, Pages: pages, Text: text}, nil
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(ctx context.Context, req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.validator.ValidateFile(ctx, path), nil
}

// readInput resolves a source file inside the configured directory, checks
// it without parsing and reads it.
func (s *Service) readInput(path string) (string, []byte, error) {
	resolved, err := s.pathValidator.ResolveInput(path)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := s.validator.ValidateFileInfo(resolved, info); err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", resolved, err)
	}
	return resolved, data, nil
}

func (s *Service) width(renderWidth float64) float64 {
	if renderWidth > 0 {
		return renderWidth
	}
	return s.renderWidth
}

func skippedItems(c *pdferrors.ErrorCollection) []SkippedItem {
	items := []SkippedItem{}
	for _, e := range c.All() {
		msg := e.Message
		if e.Context != "" {
			msg += ": " + e.Context
		}
		items = append(items, SkippedItem{
			Type:    e.Type.String(),
			Item:    e.Item,
			Page:    e.PageNumber,
			Message: msg,
		})
	}
	return items
}
