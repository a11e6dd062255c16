package lsp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// --- Base Types ---

// DocumentURI is a URI identifying a text document (file:// scheme).
type DocumentURI string

// Position in a text document (0-based line and UTF-16 character).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document, [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a document.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// LocationLink is the richer definition-result shape some servers send.
type LocationLink struct {
	TargetURI            DocumentURI `json:"targetUri"`
	TargetRange          Range       `json:"targetRange"`
	TargetSelectionRange Range       `json:"targetSelectionRange"`
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier adds a version number.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem is a document transferred to the server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is the common request parameter pair.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextDocumentContentChangeEvent describes a document change. Squall
// always sends full-text replacements (Range omitted).
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// --- Lifecycle ---

// InitializeParams are parameters for the initialize request.
type InitializeParams struct {
	ProcessID    int                `json:"processId"`
	RootURI      DocumentURI        `json:"rootUri,omitempty"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

// InitializeResult is the initialize response.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo describes the server from initialization.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams are parameters for the initialized notification.
type InitializedParams struct{}

// --- Client Capabilities ---

// ClientCapabilities describes what this client supports.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// TextDocumentClientCapabilities describes text document capabilities.
type TextDocumentClientCapabilities struct {
	Synchronization    *TextDocumentSyncClientCapabilities   `json:"synchronization,omitempty"`
	Completion         *CompletionClientCapabilities         `json:"completion,omitempty"`
	Definition         *DefinitionClientCapabilities         `json:"definition,omitempty"`
	PublishDiagnostics *PublishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
	SemanticTokens     *SemanticTokensClientCapabilities     `json:"semanticTokens,omitempty"`
}

// TextDocumentSyncClientCapabilities describes sync capabilities.
type TextDocumentSyncClientCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

// CompletionClientCapabilities describes completion capabilities.
type CompletionClientCapabilities struct {
	CompletionItem *CompletionItemCapabilities `json:"completionItem,omitempty"`
}

// CompletionItemCapabilities describes completion item capabilities.
type CompletionItemCapabilities struct {
	SnippetSupport bool `json:"snippetSupport,omitempty"`
}

// DefinitionClientCapabilities describes definition capabilities.
type DefinitionClientCapabilities struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// PublishDiagnosticsClientCapabilities describes diagnostics capabilities.
type PublishDiagnosticsClientCapabilities struct {
	RelatedInformation bool `json:"relatedInformation,omitempty"`
}

// SemanticTokensClientCapabilities advertises token support, including
// the requests the client issues and the legend it proposes.
type SemanticTokensClientCapabilities struct {
	Requests       SemanticTokensRequests `json:"requests"`
	TokenTypes     []string               `json:"tokenTypes"`
	TokenModifiers []string               `json:"tokenModifiers"`
	Formats        []string               `json:"formats"`
}

// SemanticTokensRequests names the token request forms supported.
type SemanticTokensRequests struct {
	Range bool `json:"range,omitempty"`
	Full  bool `json:"full,omitempty"`
}

// DefaultTokenTypes is the token-type legend proposed during initialize.
// The server replies with its own legend, which takes precedence; index
// stability of the reply legend is what per-line token storage relies on.
func DefaultTokenTypes() []string {
	return []string{
		"namespace", "type", "class", "enum", "interface", "struct",
		"typeParameter", "parameter", "variable", "property", "enumMember",
		"event", "function", "method", "macro", "keyword", "modifier",
		"comment", "string", "number", "regexp", "operator",
	}
}

// DefaultTokenModifiers is the token-modifier legend proposed during
// initialize. Modifiers are consumed from the wire but not stored.
func DefaultTokenModifiers() []string {
	return []string{
		"declaration", "definition", "readonly", "static", "deprecated",
		"abstract", "async", "modification", "documentation", "defaultLibrary",
	}
}

// DefaultClientCapabilities returns the capabilities Squall advertises:
// completion, definition, published diagnostics, and semantic tokens
// with both full and range requests.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		TextDocument: &TextDocumentClientCapabilities{
			Synchronization: &TextDocumentSyncClientCapabilities{DidSave: false},
			Completion: &CompletionClientCapabilities{
				CompletionItem: &CompletionItemCapabilities{SnippetSupport: false},
			},
			Definition:         &DefinitionClientCapabilities{LinkSupport: true},
			PublishDiagnostics: &PublishDiagnosticsClientCapabilities{RelatedInformation: false},
			SemanticTokens: &SemanticTokensClientCapabilities{
				Requests:       SemanticTokensRequests{Range: true, Full: true},
				TokenTypes:     DefaultTokenTypes(),
				TokenModifiers: DefaultTokenModifiers(),
				Formats:        []string{"relative"},
			},
		},
	}
}

// --- Server Capabilities ---

// ServerCapabilities describes what the server supports. Fields whose
// wire shape varies (bool or options object) are kept raw and probed
// with HasCapability.
type ServerCapabilities struct {
	TextDocumentSync       any                    `json:"textDocumentSync,omitempty"`
	CompletionProvider     *CompletionOptions     `json:"completionProvider,omitempty"`
	DefinitionProvider     any                    `json:"definitionProvider,omitempty"`
	SemanticTokensProvider *SemanticTokensOptions `json:"semanticTokensProvider,omitempty"`
}

// CompletionOptions describes the server's completion support.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
	ResolveProvider   bool     `json:"resolveProvider,omitempty"`
}

// SemanticTokensOptions describes the server's token support. Range and
// Full may each be a bool or an options object on the wire.
type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Range  any                  `json:"range,omitempty"`
	Full   any                  `json:"full,omitempty"`
}

// SemanticTokensLegend fixes the meaning of token type and modifier
// indices for the whole session.
type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// HasCapability interprets a capability field that may be a boolean or
// an options object.
func HasCapability(v any) bool {
	switch c := v.(type) {
	case nil:
		return false
	case bool:
		return c
	default:
		return true
	}
}

// --- Document Sync ---

// DidOpenTextDocumentParams are parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are parameters for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams are parameters for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Diagnostics ---

// PublishDiagnosticsParams are parameters of the publishDiagnostics
// notification.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     any                `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// DiagnosticSeverity levels.
type DiagnosticSeverity int

const (
	SeverityError   DiagnosticSeverity = 1
	SeverityWarning DiagnosticSeverity = 2
	SeverityInfo    DiagnosticSeverity = 3
	SeverityHint    DiagnosticSeverity = 4
)

// String returns a human-readable severity name.
func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// --- Completion ---

// CompletionParams are parameters for textDocument/completion.
type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

// CompletionContext describes how completion was triggered.
type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter string                `json:"triggerCharacter,omitempty"`
}

// CompletionTriggerKind values.
type CompletionTriggerKind int

const (
	CompletionTriggerInvoked          CompletionTriggerKind = 1
	CompletionTriggerCharacter        CompletionTriggerKind = 2
	CompletionTriggerIncompleteResult CompletionTriggerKind = 3
)

// CompletionList is a completion response.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// CompletionItem is a single completion candidate.
type CompletionItem struct {
	Label      string `json:"label"`
	Kind       int    `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	InsertText string `json:"insertText,omitempty"`
	SortText   string `json:"sortText,omitempty"`
	FilterText string `json:"filterText,omitempty"`
}

// --- Semantic Tokens ---

// SemanticTokensParams are parameters for semanticTokens/full.
type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// SemanticTokensRangeParams are parameters for semanticTokens/range.
type SemanticTokensRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

// SemanticTokens is a token response: delta-encoded quintuples of
// (deltaLine, deltaStartCol, length, tokenType, tokenModifiers).
type SemanticTokens struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

// --- Result Normalization ---

// ParseCompletionResult accepts either a CompletionList or a bare item
// array, the two shapes servers send.
func ParseCompletionResult(data json.RawMessage) (*CompletionList, error) {
	if len(data) == 0 || string(data) == "null" {
		return &CompletionList{}, nil
	}

	var list CompletionList
	if err := json.Unmarshal(data, &list); err == nil && (list.Items != nil || list.IsIncomplete) {
		return &list, nil
	}

	var items []CompletionItem
	if err := json.Unmarshal(data, &items); err == nil {
		return &CompletionList{Items: items}, nil
	}

	return nil, fmt.Errorf("unrecognized completion result shape")
}

// ParseLocationResult accepts a single Location, a Location array, or a
// LocationLink array, normalizing all three to []Location.
func ParseLocationResult(data json.RawMessage) ([]Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var loc Location
	if err := json.Unmarshal(data, &loc); err == nil && loc.URI != "" {
		return []Location{loc}, nil
	}

	var locs []Location
	if err := json.Unmarshal(data, &locs); err == nil && (len(locs) == 0 || locs[0].URI != "") {
		return locs, nil
	}

	var links []LocationLink
	if err := json.Unmarshal(data, &links); err == nil {
		out := make([]Location, 0, len(links))
		for _, l := range links {
			out = append(out, Location{URI: l.TargetURI, Range: l.TargetSelectionRange})
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized location result shape")
}

// --- URI Conversion ---

// FilePathToURI converts a file path to a file:// DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{Scheme: "file", Path: path}
	return DocumentURI(u.String())
}

// URIToFilePath converts a file:// DocumentURI back to a file path,
// percent-decoding along the way. Non-file URIs pass through unchanged.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}

	path := u.Path
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// DetectLanguageID returns the LSP language ID for a file path.
func DetectLanguageID(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".js":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".java":
		return "java"
	case ".zig":
		return "zig"
	case ".lua":
		return "lua"
	case ".sh", ".bash":
		return "shellscript"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "plaintext"
	}
}
