package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"ssakit/grammar"
)

var log = commonlog.GetLogger("ssakit.lsp")

// SemanticTokenTypes is the legend advertised to clients
var SemanticTokenTypes = []string{
	"operator",
	"variable",
	"function",
	"keyword",
}

var SemanticTokenModifiers = []string{}

// commands offered as completions, with what they compile to
var commands = []struct {
	label, detail string
}{
	{"+", "increment the current cell"},
	{"-", "decrement the current cell"},
	{">", "move the head right"},
	{"<", "move the head left"},
	{".", "putchar(cell)"},
	{",", "cell = getchar(), 0 at end of input"},
	{"[]", "loop while the current cell is not zero"},
}

type document struct {
	text    string
	program *grammar.Program
}

// Handler implements the LSP server handlers for brainhack sources
type Handler struct {
	mu   sync.RWMutex
	docs map[string]*document
}

func NewHandler() *Handler {
	return &Handler{docs: make(map[string]*document)}
}

// Initialize responds to the LSP client's initialize request and advertises the server's capabilities
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initialize")
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			HoverProvider: ptrBool(true),
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("initialized")
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Info("shutdown")
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen checks the opened text and publishes diagnostics
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Debugf("opened %s", params.TextDocument.URI)
	return h.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

// TextDocumentDidChange rechecks the document. Sync is full, so the last
// change holds the whole text.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Debugf("changed %s", params.TextDocument.URI)
	for i := len(params.ContentChanges) - 1; i >= 0; i-- {
		switch change := params.ContentChanges[i].(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			return h.update(ctx, params.TextDocument.URI, change.Text)
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				return h.update(ctx, params.TextDocument.URI, change.Text)
			}
		}
	}
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Debugf("closed %s", params.TextDocument.URI)
	h.mu.Lock()
	delete(h.docs, params.TextDocument.URI)
	h.mu.Unlock()
	return nil
}

func (h *Handler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	kind := protocol.CompletionItemKindOperator
	items := make([]protocol.CompletionItem, len(commands))
	for i, c := range commands {
		detail := c.detail
		items[i] = protocol.CompletionItem{Label: c.label, Kind: &kind, Detail: &detail}
	}
	return &protocol.CompletionList{Items: items}, nil
}

// TextDocumentHover shows what the command under the cursor does
func (h *Handler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, err := h.document(ctx, params.TextDocument.URI)
	if err != nil || doc == nil {
		return nil, err
	}
	lines := strings.Split(doc.text, "\n")
	line, col := int(params.Position.Line), int(params.Position.Character)
	if line >= len(lines) || col >= len(lines[line]) {
		return nil, nil
	}
	for _, c := range commands {
		if strings.IndexByte(c.label, lines[line][col]) >= 0 {
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: c.detail},
			}, nil
		}
	}
	return nil, nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the entire document
func (h *Handler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	doc, err := h.document(ctx, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	var program *grammar.Program
	if doc != nil {
		program = doc.program
	}
	return &protocol.SemanticTokens{Data: encodeTokens(collectSemanticTokens(program))}, nil
}

// document returns the open document, reading it from disk when the
// client asks about one it never opened
func (h *Handler) document(ctx *glsp.Context, uri protocol.DocumentUri) (*document, error) {
	h.mu.RLock()
	doc, ok := h.docs[uri]
	h.mu.RUnlock()
	if ok {
		return doc, nil
	}

	path, err := uriToPath(uri)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if err := h.update(ctx, uri, string(content)); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.docs[uri], nil
}

func (h *Handler) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	name := uri
	if path, err := uriToPath(uri); err == nil {
		name = filepath.Base(path)
	}
	program, diags := Check(name, text)

	h.mu.Lock()
	h.docs[uri] = &document{text: text, program: program}
	h.mu.Unlock()

	log.Debugf("%s: %d diagnostics", name, len(diags))
	if ctx != nil && ctx.Notify != nil {
		ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: ConvertDiagnostics(diags),
		})
	}
	return nil
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// On Windows, remove leading slash (e.g., /C:/...) -> C:/...
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
