// Package lsp provides a Language Server Protocol (LSP) server for portfolio
// documents: diagnostics, keyword completion, hover help and formatting.
package lsp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
	"github.com/victortavares4/dsl-investments/pkg/version"
)

const (
	serverName       = "portlang"
	diagnosticSource = "portlang"
	defaultCacheSize = 64

	methodPublishDiagnostics = "textDocument/publishDiagnostics"
)

// DocumentStore is a thread-safe store for document contents keyed by URI.
type DocumentStore struct {
	documents map[string]string // URI -> content.
	mu        sync.RWMutex
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]string),
	}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Len returns the number of open documents.
func (ds *DocumentStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.documents)
}

// ServerDeps holds injectable dependencies. Zero-value fields use defaults.
type ServerDeps struct {
	Runner *engine.Runner
	Logger *slog.Logger
}

// Server implements the portfolio LSP server.
type Server struct {
	store   *DocumentStore
	runner  *engine.Runner
	logger  *slog.Logger
	handler protocol.Handler
}

// NewServer creates a new LSP server with default handlers.
func NewServer(deps ServerDeps) (*Server, error) {
	srv := &Server{
		store:  NewDocumentStore(),
		runner: deps.Runner,
		logger: deps.Logger,
	}

	if srv.logger == nil {
		srv.logger = slog.New(slog.DiscardHandler)
	}

	if srv.runner == nil {
		runner, err := engine.New(engine.Options{
			Thresholds: validator.DefaultThresholds(),
			CacheSize:  defaultCacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("create runner: %w", err)
		}

		srv.runner = runner
	}

	srv.handler = protocol.Handler{
		Initialize:             srv.initialize,
		Initialized:            srv.initialized,
		Shutdown:               srv.shutdown,
		SetTrace:               srv.setTrace,
		TextDocumentDidOpen:    srv.didOpen,
		TextDocumentDidChange:  srv.didChange,
		TextDocumentDidSave:    srv.didSave,
		TextDocumentDidClose:   srv.didClose,
		TextDocumentCompletion: srv.completion,
		TextDocumentHover:      srv.hover,
		TextDocumentFormatting: srv.formatting,
	}

	return srv, nil
}

// Run starts the LSP server on stdio and blocks until the client disconnects.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	srv.logger.Info("lsp server starting", "transport", "stdio")

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindFull

	if params.ClientInfo != nil {
		srv.logger.Info("lsp client connected", "client", params.ClientInfo.Name)
	}

	v := version.Version

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &v,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.store.Set(uri, params.TextDocument.Text)
	srv.publishDiagnostics(ctx, uri)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// Full sync: the last change carries the whole document.
	for i := len(params.ContentChanges) - 1; i >= 0; i-- {
		if text, ok := changeText(params.ContentChanges[i]); ok {
			srv.store.Set(uri, text)
			srv.publishDiagnostics(ctx, uri)

			break
		}
	}

	return nil
}

func changeText(change any) (string, bool) {
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return c.Text, true
	case *protocol.TextDocumentContentChangeEventWhole:
		return c.Text, true
	case map[string]any:
		text, ok := c["text"].(string)

		return text, ok
	default:
		return "", false
	}
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if params.Text != nil {
		srv.store.Set(uri, *params.Text)
	}

	if _, ok := srv.store.Get(uri); ok {
		srv.publishDiagnostics(ctx, uri)
	}

	return nil
}

func (srv *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	srv.store.Delete(uri)

	// Clear stale markers in the editor.
	ctx.Notify(methodPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})

	return nil
}

func (srv *Server) completion(_ *glsp.Context, _ *protocol.CompletionParams) (any, error) {
	return protocol.CompletionList{IsIncomplete: false, Items: completionItems()}, nil
}

func (srv *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := srv.store.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil // LSP protocol expects nil hover when no document found.
	}

	word := extractWordAtPosition(text, int(params.Position.Line), int(params.Position.Character))

	doc, found := hoverDoc(word)
	if !found {
		return nil, nil // LSP protocol expects nil hover when no docs available.
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: doc,
		},
	}, nil
}

func (srv *Server) formatting(_ *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	text, ok := srv.store.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	formatted, err := printer.Format(text)
	if err != nil {
		// Broken documents are left alone; diagnostics already explain why.
		return nil, nil
	}

	if string(formatted) == text {
		return []protocol.TextEdit{}, nil
	}

	lines := splitLines(text)
	last := lines[len(lines)-1]

	return []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End: protocol.Position{
				Line:      protocol.UInteger(len(lines) - 1),
				Character: protocol.UInteger(len([]rune(last))),
			},
		},
		NewText: string(formatted),
	}}, nil
}

func (srv *Server) publishDiagnostics(ctx *glsp.Context, uri string) {
	text, ok := srv.store.Get(uri)
	if !ok {
		return
	}

	ctx.Notify(methodPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: srv.diagnose(uri, text),
	})
}

func (srv *Server) diagnose(uri, text string) []protocol.Diagnostic {
	out, err := srv.runner.Compile(context.Background(), uri, text)
	if err != nil {
		srv.logger.Warn("lsp compile failed", "uri", uri, "error", err)

		if out == nil {
			return []protocol.Diagnostic{}
		}
	}

	lines := splitLines(text)
	diags := make([]protocol.Diagnostic, 0, len(out.Diagnostics))

	for _, d := range out.Diagnostics {
		diags = append(diags, toProtocol(d, lines))
	}

	return diags
}

func toProtocol(d portlang.Diagnostic, lines []string) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityWarning
	if d.IsError() {
		severity = protocol.DiagnosticSeverityError
	}

	source := diagnosticSource
	message := d.Message

	if d.Suggestion != "" {
		message += "\nSuggestion: " + d.Suggestion
	}

	line := max(d.Line-1, 0)
	start := max(d.Column-1, 0)
	end := start + 1

	if line < len(lines) {
		if n := wordLength(lines[line], start); n > 0 {
			end = start + n
		}
	}

	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(start)},
			End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(end)},
		},
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: d.Code},
		Source:   &source,
		Message:  message,
	}
}

// wordLength returns the length in runes of the word starting at column.
func wordLength(line string, column int) int {
	runes := []rune(line)
	if column >= len(runes) {
		return 0
	}

	n := 0
	for column+n < len(runes) && isWordChar(runes[column+n]) {
		n++
	}

	return n
}

// extractWordAtPosition returns the word at the given line/character in the text.
func extractWordAtPosition(text string, line, character int) string {
	lines := splitLines(text)
	if line >= len(lines) {
		return ""
	}

	runes := []rune(lines[line])
	if character > len(runes) {
		character = len(runes)
	}

	start := character

	for start > 0 && isWordChar(runes[start-1]) {
		start--
	}

	end := character

	for end < len(runes) && isWordChar(runes[end]) {
		end++
	}

	return string(runes[start:end])
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func splitLines(input string) []string {
	return strings.Split(input, "\n")
}
