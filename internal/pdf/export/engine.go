// Package export writes field values, signature images and text overlays
// into a PDF and flattens its form.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// FlattenMode selects what happens to the form after filling.
type FlattenMode string

const (
	// FlattenBake draws every widget's appearance into the page content and
	// removes the form.
	FlattenBake FlattenMode = "bake"
	// FlattenLock marks every field read-only and keeps the widgets.
	FlattenLock FlattenMode = "lock"
	// FlattenNone leaves the form interactive.
	FlattenNone FlattenMode = "none"
)

// ParseFlattenMode validates a mode name. The empty string selects bake.
func ParseFlattenMode(s string) (FlattenMode, error) {
	switch FlattenMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FlattenBake:
		return FlattenBake, nil
	case FlattenLock:
		return FlattenLock, nil
	case FlattenNone:
		return FlattenNone, nil
	default:
		return "", fmt.Errorf("invalid flatten mode %q (must be one of: bake, lock, none)", s)
	}
}

// DefaultMaxSignaturePx bounds the longest edge of an embedded signature.
const DefaultMaxSignaturePx = 2000

// Options tune an export.
type Options struct {
	Flatten        FlattenMode
	MaxSignaturePx int
}

// DefaultOptions returns bake flattening and the default image bound.
func DefaultOptions() Options {
	return Options{Flatten: FlattenBake, MaxSignaturePx: DefaultMaxSignaturePx}
}

// Status summarizes how much of an export was applied.
type Status int

const (
	// StatusComplete: every item was applied.
	StatusComplete Status = iota
	// StatusPartial: some items were skipped, see Result.Skipped.
	StatusPartial
	// StatusDegraded: the source could not be parsed and was returned as is.
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusPartial:
		return "partial"
	case StatusDegraded:
		return "degraded"
	default:
		return "complete"
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is the outcome of an export.
type Result struct {
	Bytes             []byte                     `json:"-"`
	Status            Status                     `json:"status"`
	FieldsApplied     int                        `json:"fields_applied"`
	SignaturesApplied int                        `json:"signatures_applied"`
	TextsApplied      int                        `json:"texts_applied"`
	Flattened         int                        `json:"flattened"`
	Skipped           *pdferrors.ErrorCollection `json:"skipped"`
}

// Engine applies an editing session to a document. It holds no per-call
// state and may be shared.
type Engine struct {
	logger *log.Logger
	opts   Options
}

// NewEngine creates an engine.
func NewEngine(logger *log.Logger, opts Options) *Engine {
	if opts.Flatten == "" {
		opts.Flatten = FlattenBake
	}
	if opts.MaxSignaturePx <= 0 {
		opts.MaxSignaturePx = DefaultMaxSignaturePx
	}
	return &Engine{logger: logger, opts: opts}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// WithFlatten returns a copy of the engine using another flatten mode.
func (e *Engine) WithFlatten(mode FlattenMode) *Engine {
	c := *e
	c.opts.Flatten = mode
	return &c
}

// Export applies fields, signatures and texts to source and serializes the
// result. Per-item failures are collected in Result.Skipped. An unparsable
// source yields its own bytes with StatusDegraded. The only errors returned
// are serialization failures and context cancellation.
func (e *Engine) Export(
	ctx context.Context,
	source []byte,
	fields []annotation.FormFieldDescriptor,
	signatures []annotation.SignatureAnnotation,
	texts []annotation.TextAnnotation,
) (*Result, error) {
	res := &Result{Skipped: pdferrors.NewErrorCollection()}

	doc, err := document.Open(ctx, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn().Err(err).Int("bytes", len(source)).Msg("export degraded: returning source document unchanged")
		res.Skipped.Add(asPDFError(err, pdferrors.ErrorTypeParseFailure))
		res.Bytes = bytes.Clone(source)
		res.Status = StatusDegraded
		return res, nil
	}

	r := &run{
		engine:  e,
		ctx:     ctx,
		doc:     doc,
		res:     res,
		overlay: map[int]*bytes.Buffer{},
	}

	written := r.fillFields(fields)
	r.refreshAppearances(written)
	if err := r.drawSignatures(signatures); err != nil {
		return nil, err
	}
	r.drawTexts(texts)
	r.flatten()
	r.flushOverlays()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := doc.Bytes()
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to serialize document")
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSerializeFailure, err).WithContext("writing output")
	}
	res.Bytes = out

	if len(res.Skipped.All()) > 0 {
		res.Status = StatusPartial
	}
	e.logger.Info().
		Str("status", res.Status.String()).
		Int("fields", res.FieldsApplied).
		Int("signatures", res.SignaturesApplied).
		Int("texts", res.TextsApplied).
		Int("flattened", res.Flattened).
		Int("skipped", len(res.Skipped.All())).
		Msg("export finished")
	return res, nil
}

// run is the state of one export call.
type run struct {
	engine  *Engine
	ctx     context.Context
	doc     *document.Document
	res     *Result
	overlay map[int]*bytes.Buffer
	font    *types.IndirectRef
	metrics *fontMetrics
}

func (r *run) skip(errType pdferrors.ErrorType, item string, page int, err error) {
	pe := asPDFError(err, errType).WithItem(item)
	if page > 0 {
		pe = pe.WithPage(page)
	}
	r.engine.logger.Warn().
		Str("type", errType.String()).
		Str("item", item).
		Int("page", page).
		Err(err).
		Msg("export item skipped")
	r.res.Skipped.Add(pe)
}

// asPDFError keeps an existing *PDFError or wraps err in one of errType.
func asPDFError(err error, errType pdferrors.ErrorType) *pdferrors.PDFError {
	var pe *pdferrors.PDFError
	if errors.As(err, &pe) && pe.Type == errType {
		return pe
	}
	return pdferrors.WrapError(errType, err)
}

// draw queues content operators for a page. Queued content is appended to
// the page in one pass before serialization, in queue order.
func (r *run) draw(page *document.Page, ops string) {
	buf, ok := r.overlay[page.Number]
	if !ok {
		buf = &bytes.Buffer{}
		r.overlay[page.Number] = buf
	}
	buf.WriteString(ops)
}

func (r *run) flushOverlays() {
	for _, page := range r.doc.Pages() {
		buf, ok := r.overlay[page.Number]
		if !ok || buf.Len() == 0 {
			continue
		}
		err := document.Guard(func() error {
			return r.doc.AppendContent(page, buf.Bytes())
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeFlattenFailure, "page content", page.Number, err)
		}
	}
}

// helvetica returns the shared Helvetica font object, creating it on first
// use.
func (r *run) helvetica() (*types.IndirectRef, error) {
	if r.font != nil {
		return r.font, nil
	}
	ref, err := r.doc.Ctx.IndRefForNewObject(types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add font: %w", err)
	}
	r.font = ref
	return ref, nil
}

func (r *run) fontMetrics() *fontMetrics {
	if r.metrics == nil {
		r.metrics = newFontMetrics()
	}
	return r.metrics
}
