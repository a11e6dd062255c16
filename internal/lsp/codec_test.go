package lsp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFrame(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0"}`)
	framed := Frame(body)

	want := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	if string(framed) != want {
		t.Errorf("Frame() = %q, want %q", framed, want)
	}
}

func TestReadMessage_RoundTrip(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"test","params":{"a":1}}`)
	r := bufio.NewReader(bytes.NewReader(Frame(body)))

	got, err := ReadMessage(r)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestReadMessage_IgnoresExtraHeaders(t *testing.T) {
	body := `{"ok":true}`
	raw := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n" +
		fmt.Sprintf("content-length: %d\r\n", len(body)) +
		"X-Custom: ignored\r\n\r\n" + body
	r := bufio.NewReader(strings.NewReader(raw))

	got, err := ReadMessage(r)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(got) != body {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestReadMessage_MissingLengthSkips(t *testing.T) {
	next := []byte(`{"id":1,"result":null}`)
	raw := "Content-Type: text/plain\r\n\r\n" + string(Frame(next))
	r := bufio.NewReader(strings.NewReader(raw))

	_, err := ReadMessage(r)
	if !errors.Is(err, errMissingLength) {
		t.Fatalf("first read error = %v, want errMissingLength", err)
	}

	// Decoding continues with the next message.
	got, err := ReadMessage(r)
	if err != nil {
		t.Fatalf("second read error = %v", err)
	}
	if string(got) != string(next) {
		t.Errorf("got %q, want %q", got, next)
	}
}

func TestEncodeRequest_Shape(t *testing.T) {
	framed, err := EncodeRequest(7, "textDocument/definition", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///tmp/x.go"},
		Position:     Position{Line: 3, Character: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	body, err := ReadMessage(bufio.NewReader(bytes.NewReader(framed)))
	if err != nil {
		t.Fatal(err)
	}

	var msg struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      *int64          `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q", msg.JSONRPC)
	}
	if msg.ID == nil || *msg.ID != 7 {
		t.Errorf("id = %v, want 7", msg.ID)
	}
	if msg.Method != "textDocument/definition" {
		t.Errorf("method = %q", msg.Method)
	}
}

func TestEncodeNotification_OmitsID(t *testing.T) {
	framed, err := EncodeNotification("initialized", InitializedParams{})
	if err != nil {
		t.Fatal(err)
	}
	body, err := ReadMessage(bufio.NewReader(bytes.NewReader(framed)))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(body, []byte(`"id"`)) {
		t.Errorf("notification carries an id: %s", body)
	}
}

// The sjson template fast path must produce the same notification as a
// full struct marshal.
func TestNewDidChangeNotification_MatchesStructMarshal(t *testing.T) {
	uri := DocumentURI("file:///tmp/some%20dir/file.go")
	text := "package main\n\nfunc main() {\n\t// \"quoted\" and \\escaped\n}\n"

	framed, err := NewDidChangeNotification(uri, 42, text)
	if err != nil {
		t.Fatal(err)
	}
	fastBody, err := ReadMessage(bufio.NewReader(bytes.NewReader(framed)))
	if err != nil {
		t.Fatal(err)
	}

	wantBody, err := json.Marshal(rpcMessage{
		JSONRPC: "2.0",
		Method:  "textDocument/didChange",
		Params: DidChangeTextDocumentParams{
			TextDocument: VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
				Version:                42,
			},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	var got, want any
	if err := json.Unmarshal(fastBody, &got); err != nil {
		t.Fatalf("fast path produced invalid JSON: %v", err)
	}
	if err := json.Unmarshal(wantBody, &want); err != nil {
		t.Fatal(err)
	}
	if !jsonEqual(got, want) {
		t.Errorf("fast path:\n%s\nstruct marshal:\n%s", fastBody, wantBody)
	}
}

// jsonEqual compares two decoded JSON values structurally.
func jsonEqual(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func TestNewInitializeRequest_AdvertisesTokenSupport(t *testing.T) {
	framed, err := NewInitializeRequest(1, 123, "file:///work")
	if err != nil {
		t.Fatal(err)
	}
	body, err := ReadMessage(bufio.NewReader(bytes.NewReader(framed)))
	if err != nil {
		t.Fatal(err)
	}

	var msg struct {
		Params InitializeParams `json:"params"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}

	st := msg.Params.Capabilities.TextDocument.SemanticTokens
	if st == nil {
		t.Fatal("semanticTokens capability missing")
	}
	if !st.Requests.Full || !st.Requests.Range {
		t.Errorf("requests = %+v, want full and range", st.Requests)
	}
	if len(st.TokenTypes) == 0 {
		t.Error("empty token-type legend proposal")
	}
	if msg.Params.ProcessID != 123 {
		t.Errorf("processId = %d", msg.Params.ProcessID)
	}
}
