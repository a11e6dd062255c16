package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

// errMissingLength marks a message whose headers carried no usable
// Content-Length. The worker skips such messages and keeps reading.
var errMissingLength = errors.New("missing Content-Length header")

// rpcMessage is the JSON-RPC 2.0 envelope for outgoing traffic.
// Requests carry an ID; notifications omit it.
type rpcMessage struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// EncodeRequest builds a framed JSON-RPC request with the given id.
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	body, err := json.Marshal(rpcMessage{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}
	return Frame(body), nil
}

// EncodeNotification builds a framed JSON-RPC notification (no id).
func EncodeNotification(method string, params any) ([]byte, error) {
	body, err := json.Marshal(rpcMessage{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}
	return Frame(body), nil
}

// Frame wraps a JSON body in the LSP base-protocol header. The header
// carries Content-Length and nothing else.
func Frame(body []byte) []byte {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	framed := make([]byte, 0, len(header)+len(body))
	framed = append(framed, header...)
	return append(framed, body...)
}

// ReadMessage reads one framed message body. It consumes header lines
// until the blank separator, then exactly Content-Length bytes. A
// missing or malformed length yields errMissingLength with the stream
// positioned after the headers, so the caller can skip and continue.
func ReadMessage(r *bufio.Reader) (json.RawMessage, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && n >= 0 {
					contentLength = n
				}
			}
		}
		// Content-Type and unknown headers are ignored.
	}

	if contentLength < 0 {
		return nil, errMissingLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// --- Message Builders ---

// NewInitializeRequest builds the initialize request, advertising
// completion, definition, diagnostics, and semantic-token support.
func NewInitializeRequest(id int64, pid int, rootURI DocumentURI) ([]byte, error) {
	return EncodeRequest(id, "initialize", InitializeParams{
		ProcessID:    pid,
		RootURI:      rootURI,
		Capabilities: DefaultClientCapabilities(),
	})
}

// NewInitializedNotification builds the initialized notification.
func NewInitializedNotification() ([]byte, error) {
	return EncodeNotification("initialized", InitializedParams{})
}

// NewDidOpenNotification builds textDocument/didOpen.
func NewDidOpenNotification(uri DocumentURI, languageID string, version int, text string) ([]byte, error) {
	return EncodeNotification("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: languageID, Version: version, Text: text},
	})
}

// didChangeTemplate is the pre-marshaled shape of a full-text didChange
// notification. The three mutable fields are spliced in with sjson so
// the per-keystroke hot path avoids a full struct marshal.
const didChangeTemplate = `{"jsonrpc":"2.0","method":"textDocument/didChange","params":{"textDocument":{"uri":"","version":0},"contentChanges":[{"text":""}]}}`

// NewDidChangeNotification builds textDocument/didChange with a single
// full-text replacement change.
func NewDidChangeNotification(uri DocumentURI, version int, text string) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(didChangeTemplate), "params.textDocument.uri", string(uri))
	if err != nil {
		return nil, fmt.Errorf("didChange uri: %w", err)
	}
	body, err = sjson.SetBytes(body, "params.textDocument.version", version)
	if err != nil {
		return nil, fmt.Errorf("didChange version: %w", err)
	}
	body, err = sjson.SetBytes(body, "params.contentChanges.0.text", text)
	if err != nil {
		return nil, fmt.Errorf("didChange text: %w", err)
	}
	return Frame(body), nil
}

// NewDidCloseNotification builds textDocument/didClose.
func NewDidCloseNotification(uri DocumentURI) ([]byte, error) {
	return EncodeNotification("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// NewCompletionRequest builds textDocument/completion.
func NewCompletionRequest(id int64, uri DocumentURI, pos Position) ([]byte, error) {
	return EncodeRequest(id, "textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: &CompletionContext{TriggerKind: CompletionTriggerInvoked},
	})
}

// NewDefinitionRequest builds textDocument/definition.
func NewDefinitionRequest(id int64, uri DocumentURI, pos Position) ([]byte, error) {
	return EncodeRequest(id, "textDocument/definition", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
}

// NewSemanticTokensFullRequest builds textDocument/semanticTokens/full.
func NewSemanticTokensFullRequest(id int64, uri DocumentURI) ([]byte, error) {
	return EncodeRequest(id, "textDocument/semanticTokens/full", SemanticTokensParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// NewSemanticTokensRangeRequest builds textDocument/semanticTokens/range.
func NewSemanticTokensRangeRequest(id int64, uri DocumentURI, rng Range) ([]byte, error) {
	return EncodeRequest(id, "textDocument/semanticTokens/range", SemanticTokensRangeParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Range:        rng,
	})
}

// NewShutdownRequest builds the shutdown request.
func NewShutdownRequest(id int64) ([]byte, error) {
	return EncodeRequest(id, "shutdown", nil)
}

// NewExitNotification builds the exit notification.
func NewExitNotification() ([]byte, error) {
	return EncodeNotification("exit", nil)
}
