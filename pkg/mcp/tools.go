package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
	"github.com/victortavares4/dsl-investments/pkg/report"
)

// Tool name constants.
const (
	ToolNameCheck  = "portlang_check"
	ToolNameExport = "portlang_export"
	ToolNameReport = "portlang_report"
	ToolNameFormat = "portlang_format"
)

// Input size limits.
const (
	// MaxSourceBytes is the maximum allowed size for an inline document (1 MB).
	MaxSourceBytes = 1 << 20
)

const defaultDocumentName = "inline.port"

// Sentinel errors for tool input validation.
var (
	// ErrEmptySource indicates the source parameter is empty.
	ErrEmptySource = errors.New("source parameter is required and must not be empty")
	// ErrSourceTooLarge indicates the source input exceeds the size limit.
	ErrSourceTooLarge = errors.New("source input exceeds maximum size")
	// ErrBinaryExport indicates a binary export was requested over a text transport.
	ErrBinaryExport = errors.New("binary export is not available over MCP")
)

// Input types (auto-generate JSON schemas via struct tags).

// CheckInput is the input schema for the portlang_check tool.
type CheckInput struct {
	Name   string `json:"name,omitempty" jsonschema:"optional document name used in diagnostics"`
	Source string `json:"source"         jsonschema:"portlang document source"`
}

// ExportInput is the input schema for the portlang_export tool.
type ExportInput struct {
	Format string `json:"format,omitempty" jsonschema:"json, compact, yaml or toml (default: json)"`
	Name   string `json:"name,omitempty"   jsonschema:"optional document name"`
	Source string `json:"source"           jsonschema:"portlang document source"`
}

// ReportInput is the input schema for the portlang_report tool.
type ReportInput struct {
	Format string `json:"format,omitempty" jsonschema:"text, markdown or html (default: markdown)"`
	Name   string `json:"name,omitempty"   jsonschema:"optional document name"`
	Source string `json:"source"           jsonschema:"portlang document source"`
}

// FormatInput is the input schema for the portlang_format tool.
type FormatInput struct {
	Source string `json:"source" jsonschema:"portlang document source"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// CheckResult is the payload of portlang_check.
type CheckResult struct {
	Name        string                `json:"name"`
	Outcome     string                `json:"outcome"`
	Valid       bool                  `json:"valid"`
	Errors      int                   `json:"errors"`
	Warnings    int                   `json:"warnings"`
	Diagnostics []portlang.Diagnostic `json:"diagnostics"`
}

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	out, err := s.compile(ctx, input.Name, input.Source)
	if err != nil {
		return errorResult(err)
	}

	errs, warnings := out.Counts()

	diags := out.Diagnostics
	if diags == nil {
		diags = []portlang.Diagnostic{}
	}

	return jsonResult(CheckResult{
		Name:        out.Name,
		Outcome:     out.Status(),
		Valid:       !out.Blocked(),
		Errors:      errs,
		Warnings:    warnings,
		Diagnostics: diags,
	})
}

func (s *Server) handleExport(ctx context.Context, _ *mcpsdk.CallToolRequest, input ExportInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	format := export.FormatJSON

	if input.Format != "" {
		f, err := export.ParseFormat(input.Format)
		if err != nil {
			return errorResult(err)
		}

		format = f
	}

	if format == export.FormatBinary {
		return errorResult(ErrBinaryExport)
	}

	doc, err := s.document(ctx, input.Name, input.Source)
	if err != nil {
		return errorResult(err)
	}

	data, err := export.Marshal(doc, format)
	if err != nil {
		return errorResult(err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: doc}, nil
}

func (s *Server) handleReport(ctx context.Context, _ *mcpsdk.CallToolRequest, input ReportInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	format := report.FormatMarkdown

	if input.Format != "" {
		f, err := report.ParseFormat(input.Format)
		if err != nil {
			return errorResult(err)
		}

		format = f
	}

	doc, err := s.document(ctx, input.Name, input.Source)
	if err != nil {
		return errorResult(err)
	}

	var buf bytes.Buffer

	err = report.Render(&buf, doc, format, report.Options{})
	if err != nil {
		return errorResult(err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: buf.String()}},
	}, ToolOutput{Data: buf.String()}, nil
}

func (s *Server) handleFormat(_ context.Context, _ *mcpsdk.CallToolRequest, input FormatInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateSource(input.Source)
	if err != nil {
		return errorResult(err)
	}

	formatted, err := printer.Format(input.Source)
	if err != nil {
		return errorResult(err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(formatted)}},
	}, ToolOutput{Data: string(formatted)}, nil
}

func (s *Server) compile(ctx context.Context, name, source string) (*engine.Outcome, error) {
	err := validateSource(source)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = defaultDocumentName
	}

	out, err := s.runner.Compile(ctx, name, source)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	return out, nil
}

// document compiles source and refuses blocked results with their first
// diagnostic so the caller can fix it.
func (s *Server) document(ctx context.Context, name, source string) (*export.Document, error) {
	out, err := s.compile(ctx, name, source)
	if err != nil {
		return nil, err
	}

	if out.Blocked() {
		return nil, fmt.Errorf("%w: %s", portlang.ErrBlocked, out.Diagnostics[0])
	}

	doc, err := out.Document(export.Meta{})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	return doc, nil
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateSource checks common source input constraints.
func validateSource(source string) error {
	if source == "" {
		return ErrEmptySource
	}

	if len(source) > MaxSourceBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(source), MaxSourceBytes)
	}

	return nil
}
