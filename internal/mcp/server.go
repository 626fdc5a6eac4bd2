package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/descriptions"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	logger     *log.Logger
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	validate   *validator.Validate
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // tools are fixed at startup
	)

	s := &Server{
		config:     cfg,
		logger:     logger,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		validate:   validator.New(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExtractFields,
		mcp.WithDescription(descriptions.PDFExtractFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, relative to the configured directory"),
		),
		mcp.WithNumber("render_width",
			mcp.Description("Width of the preview the rectangles are reported for (default: configured render width)"),
		),
	), s.handlePDFExtractFields)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExport,
		mcp.WithDescription(descriptions.PDFExportDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the source PDF file"),
		),
		mcp.WithString("annotations",
			mcp.Description("JSON object with values, signatures and texts"),
		),
		mcp.WithString("output",
			mcp.Description("Output path (default: edited_<name> next to the source)"),
		),
		mcp.WithString("flatten",
			mcp.Description("bake, lock or none (default: configured mode)"),
			mcp.Enum("bake", "lock", "none"),
		),
		mcp.WithNumber("render_width",
			mcp.Description("Preview width the annotation rectangles were authored against"),
		),
		mcp.WithBoolean("apply_sample",
			mcp.Description("Prefill fields from the sample data file before applying values"),
		),
		mcp.WithString("sample_path",
			mcp.Description("Sample data file to prefill from (implies apply_sample; default: configured sample data file)"),
		),
	), s.handlePDFExport)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolMatchSampleData,
		mcp.WithDescription(descriptions.PDFMatchSampleDataDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithString("sample_path",
			mcp.Description("Sample data file (default: configured sample data file)"),
		),
	), s.handlePDFMatchSampleData)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolReviewSheet,
		mcp.WithDescription(descriptions.PDFReviewSheetDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithArray("pages",
			mcp.Description("Pages to include (default: all)"),
			mcp.Items(map[string]any{"type": "integer", "minimum": 1}),
		),
		mcp.WithString("output",
			mcp.Description("Output path (default: review_<name> next to the source)"),
		),
	), s.handlePDFReviewSheet)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolPageText,
		mcp.WithDescription(descriptions.PDFPageTextDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("Page number, starting at 1"),
		),
	), s.handlePDFPageText)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolValidateFile,
		mcp.WithDescription(descriptions.PDFValidateFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
	), s.handlePDFValidateFile)
}

// Handler functions
func (s *Server) handlePDFExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFExtractFieldsRequest{
		Path:        path,
		RenderWidth: request.GetFloat("render_width", 0),
	}
	result, err := s.pdfService.PDFExtractFields(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePDFExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	annotations, err := s.parseAnnotations(request.GetString("annotations", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFExportRequest{
		Path:        path,
		Annotations: annotations,
		Output:      request.GetString("output", ""),
		Flatten:     request.GetString("flatten", ""),
		RenderWidth: request.GetFloat("render_width", 0),
		ApplySample: request.GetBool("apply_sample", false),
		SamplePath:  request.GetString("sample_path", ""),
	}
	result, err := s.pdfService.PDFExport(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("export failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatPDFExportResult(result)), nil
}

func (s *Server) handlePDFMatchSampleData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFMatchSampleDataRequest{
		Path:       path,
		SamplePath: request.GetString("sample_path", ""),
	}
	result, err := s.pdfService.PDFMatchSampleData(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handlePDFReviewSheet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFReviewSheetRequest{
		Path:   path,
		Pages:  request.GetIntSlice("pages", nil),
		Output: request.GetString("output", ""),
	}
	result, err := s.pdfService.PDFReviewSheet(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Review sheet written: %s (%d bytes)\n", result.Output, result.Size)
	text += fmt.Sprintf("Fields: %d\n", result.Fields)
	if len(result.Pages) > 0 {
		text += fmt.Sprintf("Pages: %s\n", joinInts(result.Pages))
	}
	text += "\n" + result.Text
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFPageText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := request.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFPageText(pdf.PDFPageTextRequest{Path: path, Page: page})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Page %d of %d: %s\n\n", result.Page, result.Pages, result.Path)
	text += result.Text
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFValidateFile(ctx, pdf.PDFValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file %s is valid and readable (%d pages)", result.Path, result.Pages)
		if result.HasForm {
			responseText += fmt.Sprintf(", form with %d fields", result.FieldCount)
		} else {
			responseText += ", no form"
		}
	} else {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

// parseAnnotations decodes and validates the annotations payload of
// pdf_export. An empty payload exports the document as is.
func (s *Server) parseAnnotations(raw string) (pdf.Annotations, error) {
	var annotations pdf.Annotations
	if strings.TrimSpace(raw) == "" {
		return annotations, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&annotations); err != nil {
		return annotations, fmt.Errorf("invalid annotations JSON: %w", err)
	}

	if err := s.validate.Struct(annotations); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return annotations, fmt.Errorf("invalid annotations: %s", strings.Join(msgs, "; "))
		}
		return annotations, fmt.Errorf("invalid annotations: %w", err)
	}
	return annotations, nil
}

func (s *Server) formatPDFExportResult(result *pdf.PDFExportResult) string {
	text := fmt.Sprintf("Exported %s\n", result.Path)
	text += fmt.Sprintf("Output: %s (%d bytes)\n", result.Output, result.Size)
	text += fmt.Sprintf("Status: %s\n", result.Status)
	text += fmt.Sprintf("Flatten: %s\n", result.Flatten)
	if result.SampleValues > 0 {
		text += fmt.Sprintf("Sample values prefilled: %d\n", result.SampleValues)
	}
	text += fmt.Sprintf("Fields applied: %d\n", result.FieldsApplied)
	text += fmt.Sprintf("Signatures applied: %d\n", result.SignaturesApplied)
	text += fmt.Sprintf("Texts applied: %d\n", result.TextsApplied)
	if result.Flattened > 0 {
		text += fmt.Sprintf("Fields flattened: %d\n", result.Flattened)
	}

	if len(result.Skipped) > 0 {
		text += fmt.Sprintf("\nSkipped (%d):\n", len(result.Skipped))
		for i, item := range result.Skipped {
			text += fmt.Sprintf("%d. [%s]", i+1, item.Type)
			if item.Item != "" {
				text += " " + item.Item
			}
			if item.Page > 0 {
				text += fmt.Sprintf(" (page %d)", item.Page)
			}
			text += ": " + item.Message + "\n"
		}
	}

	return text
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves the protocol over stdin/stdout
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug().
		Str("directory", s.pdfService.ConfiguredDirectory()).
		Msg("starting PDF form MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the protocol over HTTP with server-sent events until
// ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	s.logger.Info().
		Str("address", addr).
		Str("directory", s.pdfService.ConfiguredDirectory()).
		Msg("starting PDF form MCP server in SSE mode")

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down SSE server: %w", err)
		}
		s.logger.Info().Msg("SSE server stopped")
		return nil
	}
}
