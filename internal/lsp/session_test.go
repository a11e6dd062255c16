package lsp

import (
	"encoding/json"
	"testing"
	"time"
)

// startTestSession spawns a session against cat(1), which absorbs our
// writes and echoes them back; echoed requests carry both id and method
// so the worker drops them. Events are fabricated by the tests.
func startTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(ServerConfig{
		Command:    "cat",
		LanguageID: "go",
		Extensions: []string{".go"},
		Timeout:    2 * time.Second,
	})
	if err := s.Start("/tmp/squall_test/main.go", "package main\n"); err != nil {
		t.Skipf("cannot spawn cat: %v", err)
	}
	t.Cleanup(s.ForceStop)
	return s
}

const initializeResult = `{
	"capabilities": {
		"completionProvider": {"triggerCharacters": ["."]},
		"definitionProvider": true,
		"semanticTokensProvider": {
			"legend": {"tokenTypes": ["keyword", "string", "function"], "tokenModifiers": []},
			"range": true,
			"full": true
		}
	},
	"serverInfo": {"name": "fakeserver", "version": "1.0"}
}`

// makeReady drives the session through the initialize handshake.
func makeReady(t *testing.T, s *Session) {
	t.Helper()
	if s.State() != StateStarting {
		t.Fatalf("state after Start = %v, want starting", s.State())
	}
	d := s.HandleEvent(Event{Kind: EventResponse, ID: 1, Result: json.RawMessage(initializeResult)})
	if d.Kind != DispatchReady {
		t.Fatalf("initialize dispatch = %v, want ready", d.Kind)
	}
	if s.State() != StateRunning {
		t.Fatalf("state = %v, want running", s.State())
	}
}

func TestSession_InitializeHandshake(t *testing.T) {
	s := startTestSession(t)

	if s.PendingCount() != 1 {
		t.Fatalf("pending after Start = %d, want 1 (initialize)", s.PendingCount())
	}
	makeReady(t, s)

	if !s.TokensSupported() || !s.RangeSupported() {
		t.Error("semantic token support not detected")
	}
	if got := s.Legend(); len(got) != 3 || got[0] != "keyword" {
		t.Errorf("legend = %v", got)
	}
	if s.DocumentVersion() != 1 {
		t.Errorf("document version = %d, want 1", s.DocumentVersion())
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending after initialize = %d", s.PendingCount())
	}
}

func TestSession_RequestCorrelation(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	id1, err := s.RequestCompletion(Position{Line: 0, Character: 0})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.RequestDefinition(Position{Line: 0, Character: 0})
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatalf("ids not unique: %d", id1)
	}
	if id2 != id1+1 {
		t.Errorf("ids not monotonic: %d then %d", id1, id2)
	}

	d := s.HandleEvent(Event{Kind: EventResponse, ID: id2, Result: json.RawMessage(`[]`)})
	if d.Kind != DispatchDefinition {
		t.Fatalf("dispatch = %v, want definition", d.Kind)
	}

	// The same id must never match twice.
	d = s.HandleEvent(Event{Kind: EventResponse, ID: id2, Result: json.RawMessage(`[]`)})
	if d.Kind != DispatchNone {
		t.Fatalf("second response for id %d dispatched as %v", id2, d.Kind)
	}

	// id1 stays pending until answered or the session resets.
	if s.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", s.PendingCount())
	}
	d = s.HandleEvent(Event{Kind: EventResponse, ID: id1, Result: json.RawMessage(`{"isIncomplete":false,"items":[{"label":"Println"}]}`)})
	if d.Kind != DispatchCompletion || len(d.Completion.Items) != 1 {
		t.Fatalf("dispatch = %+v", d)
	}
}

func TestSession_ErrorResponseConsumesPending(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	id, err := s.RequestTokensFull()
	if err != nil {
		t.Fatal(err)
	}

	d := s.HandleEvent(Event{Kind: EventError, ID: id, Message: "rpc error -32801: content modified"})
	if d.Kind != DispatchStatus || d.Status == "" {
		t.Fatalf("dispatch = %+v", d)
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d after error response", s.PendingCount())
	}
}

func TestSession_TokenDispatchStaysRaw(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	id, err := s.RequestTokensRange(Range{Start: Position{Line: 0}, End: Position{Line: 100}})
	if err != nil {
		t.Fatal(err)
	}

	raw := `{"resultId":"r1","data":[0,0,5,2,0,1,3,4,0,0]}`
	d := s.HandleEvent(Event{Kind: EventResponse, ID: id, Result: json.RawMessage(raw)})
	if d.Kind != DispatchTokens {
		t.Fatalf("dispatch = %v", d.Kind)
	}
	if d.RequestKind != KindTokensRange {
		t.Errorf("request kind = %v", d.RequestKind)
	}
	if string(d.Raw) != raw {
		t.Errorf("raw result altered: %s", d.Raw)
	}
}

func TestSession_DiagnosticsReplaceAndClear(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	uri := s.DocumentURI()
	diag := func(line int, msg string) Diagnostic {
		return Diagnostic{
			Range:    Range{Start: Position{Line: line}, End: Position{Line: line}},
			Severity: SeverityError,
			Message:  msg,
		}
	}

	s.HandleEvent(Event{Kind: EventDiagnostics, URI: uri, Diagnostics: []Diagnostic{diag(1, "first"), diag(2, "second")}})
	if got := s.Diagnostics().Get(uri); len(got) != 2 {
		t.Fatalf("got %d diagnostics", len(got))
	}

	// A new publish replaces, never accumulates.
	s.HandleEvent(Event{Kind: EventDiagnostics, URI: uri, Diagnostics: []Diagnostic{diag(5, "only")}})
	got := s.Diagnostics().Get(uri)
	if len(got) != 1 || got[0].Message != "only" {
		t.Fatalf("got %+v", got)
	}

	// An empty publish clears.
	s.HandleEvent(Event{Kind: EventDiagnostics, URI: uri, Diagnostics: nil})
	if s.Diagnostics().Len() != 0 {
		t.Error("diagnostics not cleared by empty publish")
	}
}

func TestSession_RequestsRequireRunning(t *testing.T) {
	s := NewSession(ServerConfig{Command: "cat", LanguageID: "go"})
	if _, err := s.RequestCompletion(Position{}); err != ErrNotRunning {
		t.Errorf("completion while off: %v", err)
	}
	if err := s.ChangeDocument("x"); err != ErrNotRunning {
		t.Errorf("didChange while off: %v", err)
	}
}

func TestSession_UnsupportedCapability(t *testing.T) {
	s := startTestSession(t)
	d := s.HandleEvent(Event{Kind: EventResponse, ID: 1, Result: json.RawMessage(`{"capabilities":{}}`)})
	if d.Kind != DispatchReady {
		t.Fatal(d.Kind)
	}
	if _, err := s.RequestTokensFull(); err != ErrNotSupported {
		t.Errorf("tokens without capability: %v", err)
	}
	if _, err := s.RequestCompletion(Position{}); err != ErrNotSupported {
		t.Errorf("completion without capability: %v", err)
	}
}

func TestSession_ChangeDocumentBumpsVersion(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	for i := 0; i < 3; i++ {
		if err := s.ChangeDocument("content " + string(rune('a'+i))); err != nil {
			t.Fatal(err)
		}
	}
	if s.DocumentVersion() != 4 {
		t.Errorf("version = %d, want 4", s.DocumentVersion())
	}
}

func TestSession_GracefulStop(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateStopping {
		t.Fatalf("state = %v, want stopping", s.State())
	}

	// Find the shutdown request's id in the pending table.
	var shutdownID int64
	for id, kind := range s.pending {
		if kind == KindShutdown {
			shutdownID = id
		}
	}
	if shutdownID == 0 {
		t.Fatal("shutdown request not pending")
	}

	d := s.HandleEvent(Event{Kind: EventResponse, ID: shutdownID, Result: json.RawMessage(`null`)})
	if d.Kind != DispatchStatus {
		t.Fatalf("dispatch = %v", d.Kind)
	}
	if s.State() != StateOff {
		t.Errorf("state = %v, want off", s.State())
	}
}

// After a forced stop every session-scoped field must equal its initial
// value.
func TestSession_ForceStopResetsEverything(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	if _, err := s.RequestCompletion(Position{}); err != nil {
		t.Fatal(err)
	}
	s.HandleEvent(Event{Kind: EventDiagnostics, URI: s.DocumentURI(), Diagnostics: []Diagnostic{
		{Severity: SeverityWarning, Message: "w"},
	}})

	s.ForceStop()

	if s.State() != StateOff {
		t.Errorf("state = %v", s.State())
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d", s.PendingCount())
	}
	if s.Legend() != nil {
		t.Errorf("legend = %v", s.Legend())
	}
	if s.TokensSupported() || s.RangeSupported() {
		t.Error("token support not cleared")
	}
	if s.DocumentURI() != "" || s.DocumentVersion() != 0 {
		t.Errorf("document state leaked: %q v%d", s.DocumentURI(), s.DocumentVersion())
	}
	if s.Diagnostics().Len() != 0 {
		t.Error("diagnostics leaked")
	}
	if s.Worker() != nil {
		t.Error("worker reference leaked")
	}
	if s.nextID != 0 {
		t.Errorf("id counter = %d", s.nextID)
	}
}

func TestSession_ServerExitedResets(t *testing.T) {
	s := startTestSession(t)
	makeReady(t, s)

	if _, err := s.RequestDefinition(Position{}); err != nil {
		t.Fatal(err)
	}

	d := s.HandleEvent(Event{Kind: EventServerExited, ExitCode: -1})
	if d.Kind != DispatchExited {
		t.Fatalf("dispatch = %v", d.Kind)
	}
	if s.State() != StateOff || s.PendingCount() != 0 {
		t.Errorf("session not reset: state=%v pending=%d", s.State(), s.PendingCount())
	}
}

func TestSession_Handles(t *testing.T) {
	s := NewSession(ServerConfig{Command: "cat", LanguageID: "go", Extensions: []string{".go"}})
	if !s.Handles("/src/main.go") {
		t.Error("should handle .go")
	}
	if s.Handles("/src/main.rs") {
		t.Error("should not handle .rs")
	}
}
