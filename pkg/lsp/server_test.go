package lsp

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

const testURI = "file:///carteira.port"

const validDoc = `carteira {
  nome = "Equilibrio";
  perfil = "moderado";
  horizonte_temporal = 5 anos;
  alocação {
    ações_nacionais = 30%;
    renda_fixa = 50%;
    fundos_imobiliarios = 20%;
  }
}`

type notification struct {
	method string
	params *protocol.PublishDiagnosticsParams
}

type recorder struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recorder) context() *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {
			r.mu.Lock()
			defer r.mu.Unlock()

			p, _ := params.(*protocol.PublishDiagnosticsParams)
			r.sent = append(r.sent, notification{method: method, params: p})
		},
	}
}

func (r *recorder) last(t *testing.T) notification {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.sent)

	return r.sent[len(r.sent)-1]
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer(ServerDeps{})
	require.NoError(t, err)

	return srv
}

func open(t *testing.T, srv *Server, rec *recorder, text string) {
	t.Helper()

	err := srv.didOpen(rec.context(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: "portlang", Text: text},
	})
	require.NoError(t, err)
}

func TestDocumentStore(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	_, ok := store.Get(testURI)
	assert.False(t, ok)

	store.Set(testURI, "a")
	store.Set(testURI, "b")

	got, ok := store.Get(testURI)
	require.True(t, ok)
	assert.Equal(t, "b", got)
	assert.Equal(t, 1, store.Len())

	store.Delete(testURI)
	assert.Equal(t, 0, store.Len())
}

func TestDocumentStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			uri := testURI + string(rune('a'+i))
			for range 100 {
				store.Set(uri, "content")
				store.Get(uri)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 8, store.Len())
}

func TestDidOpenPublishesNoDiagnosticsForValidDocument(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	open(t, srv, rec, validDoc)

	n := rec.last(t)
	assert.Equal(t, "textDocument/publishDiagnostics", n.method)
	require.NotNil(t, n.params)
	assert.Equal(t, testURI, n.params.URI)
	assert.Empty(t, n.params.Diagnostics)
}

func TestDidChangePublishesSemanticDiagnostics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	open(t, srv, rec, validDoc)

	changed := strings.Replace(validDoc, "renda_fixa = 50%", "renda_fixa = 60%", 1)
	err := srv.didChange(rec.context(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: changed}},
	})
	require.NoError(t, err)

	diags := rec.last(t).params.Diagnostics
	require.NotEmpty(t, diags)

	first := diags[0]
	assert.Equal(t, protocol.DiagnosticSeverityError, *first.Severity)
	assert.Equal(t, "SEM003", first.Code.Value)
	assert.Equal(t, "portlang", *first.Source)

	stored, _ := srv.store.Get(testURI)
	assert.Equal(t, changed, stored)
}

func TestDidChangeAcceptsRawMapChange(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	open(t, srv, rec, validDoc)

	err := srv.didChange(rec.context(), &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI}},
		ContentChanges: []any{map[string]any{"text": `carteira { nome = "x; }`}},
	})
	require.NoError(t, err)

	diags := rec.last(t).params.Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, "LEX002", diags[0].Code.Value)
	assert.Equal(t, protocol.UInteger(0), diags[0].Range.Start.Line)
	assert.Equal(t, protocol.UInteger(18), diags[0].Range.Start.Character)
}

func TestDidSaveAndClose(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	open(t, srv, rec, validDoc)

	text := strings.Replace(validDoc, `"moderado"`, `"ousado"`, 1)
	err := srv.didSave(rec.context(), &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Text:         &text,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.last(t).params.Diagnostics)
	assert.Equal(t, "SEM006", rec.last(t).params.Diagnostics[0].Code.Value)

	err = srv.didClose(rec.context(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	assert.Empty(t, rec.last(t).params.Diagnostics)

	_, ok := srv.store.Get(testURI)
	assert.False(t, ok)
}

func TestDiagnosticRangeCoversWord(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	text := strings.Replace(validDoc, "ações_nacionais = 30%", "ações_nacionais = 130%", 1)

	diags := srv.diagnose(testURI, text)
	require.NotEmpty(t, diags)

	var rangeDiag *protocol.Diagnostic

	for i := range diags {
		if diags[i].Code.Value == "SEM005" {
			rangeDiag = &diags[i]
		}
	}

	require.NotNil(t, rangeDiag)
	assert.Equal(t, protocol.UInteger(5), rangeDiag.Range.Start.Line)
	assert.Equal(t, protocol.UInteger(4), rangeDiag.Range.Start.Character)
	assert.Equal(t, protocol.UInteger(4+len([]rune("ações_nacionais"))), rangeDiag.Range.End.Character)
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	result, err := srv.completion(nil, &protocol.CompletionParams{})
	require.NoError(t, err)

	list, ok := result.(protocol.CompletionList)
	require.True(t, ok)
	assert.Len(t, list.Items, len(token.Keywords())+3)

	labels := make(map[string]protocol.CompletionItemKind, len(list.Items))
	for _, item := range list.Items {
		labels[item.Label] = *item.Kind
		assert.NotEmpty(t, *item.Detail, item.Label)
	}

	assert.Equal(t, protocol.CompletionItemKindKeyword, labels["alocação"])
	assert.Equal(t, protocol.CompletionItemKindField, labels["renda_fixa"])
	assert.Equal(t, protocol.CompletionItemKindEnumMember, labels["trimestral"])
	assert.Equal(t, protocol.CompletionItemKindValue, labels[`"arrojado"`])
}

func TestHover(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	open(t, srv, rec, validDoc)

	hover := func(line, char uint32) *protocol.Hover {
		h, err := srv.hover(nil, &protocol.HoverParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
				Position:     protocol.Position{Line: line, Character: char},
			},
		})
		require.NoError(t, err)

		return h
	}

	h := hover(5, 8)
	require.NotNil(t, h)

	content, ok := h.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Contains(t, content.Value, "**ações_nacionais**")
	assert.Contains(t, content.Value, "high risk")

	h = hover(4, 4)
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.(protocol.MarkupContent).Value, "add up to 100%")

	assert.Nil(t, hover(1, 12), "string content has no docs")
	assert.Nil(t, hover(40, 0), "line out of range")
}

func TestHoverUnknownDocument(t *testing.T) {
	t.Parallel()

	h, err := newTestServer(t).hover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.port"},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestFormatting(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := &recorder{}

	messy := strings.Join(strings.Fields(validDoc), " ")
	open(t, srv, rec, messy)

	edits, err := srv.formatting(nil, &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].NewText, "\n  alocação {\n")
	assert.Equal(t, protocol.UInteger(len([]rune(messy))), edits[0].Range.End.Character)

	srv.store.Set(testURI, edits[0].NewText)

	edits, err = srv.formatting(nil, &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	assert.Empty(t, edits, "already canonical")

	srv.store.Set(testURI, `carteira {`)

	edits, err = srv.formatting(nil, &protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	require.NoError(t, err)
	assert.Nil(t, edits)
}

func TestExtractWordAtPosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		line      int
		character int
		expected  string
	}{
		{"simple word", "hello world", 0, 2, "hello"},
		{"second word", "hello world", 0, 8, "world"},
		{"accented keyword", "  alocação {", 0, 5, "alocação"},
		{"cursor after accent", "  ações_nacionais = 1%;", 0, 6, "ações_nacionais"},
		{"multiline second line", "first\nsecond\nthird", 1, 3, "second"},
		{"line out of bounds", "single line", 5, 0, ""},
		{"character past end of line", "short", 0, 100, "short"},
		{"punctuation", "a = {", 0, 2, ""},
		{"empty text", "", 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, extractWordAtPosition(tt.text, tt.line, tt.character))
		})
	}
}
