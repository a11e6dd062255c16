package lsp

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// State is the session lifecycle state. Exactly one session is live per
// editor instance.
type State int

const (
	StateOff State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RequestKind identifies which request produced a pending id. The
// pending table stores kinds rather than method strings so dispatch
// sites switch exhaustively.
type RequestKind int

const (
	KindNone RequestKind = iota
	KindInitialize
	KindShutdown
	KindCompletion
	KindDefinition
	KindTokensFull
	KindTokensRange
)

// String returns the originating method name.
func (k RequestKind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindShutdown:
		return "shutdown"
	case KindCompletion:
		return "textDocument/completion"
	case KindDefinition:
		return "textDocument/definition"
	case KindTokensFull:
		return "textDocument/semanticTokens/full"
	case KindTokensRange:
		return "textDocument/semanticTokens/range"
	default:
		return "none"
	}
}

// DispatchKind tags the variants of Dispatch.
type DispatchKind int

const (
	// DispatchNone means the event needed no editor action.
	DispatchNone DispatchKind = iota
	// DispatchReady means initialization completed.
	DispatchReady
	// DispatchCompletion carries a parsed completion list.
	DispatchCompletion
	// DispatchDefinition carries normalized definition locations.
	DispatchDefinition
	// DispatchTokens carries a raw semantic-token result.
	DispatchTokens
	// DispatchDiagnostics means the diagnostic store was updated.
	DispatchDiagnostics
	// DispatchStatus carries a message for the status line.
	DispatchStatus
	// DispatchExited means the server died and the session reset.
	DispatchExited
)

// Dispatch is the typed outcome of handling one worker event. Only the
// fields for the tagged kind are set. Token results stay raw so the
// highlight engine can run its fast-path scanner over them.
type Dispatch struct {
	Kind DispatchKind

	RequestID   int64
	RequestKind RequestKind
	Completion  *CompletionList
	Locations   []Location
	Raw         json.RawMessage
	URI         DocumentURI
	Status      string
	ExitCode    int
}

// Session is the main-thread-owned LSP state machine: process
// lifecycle, request-id allocation, pending-request correlation,
// document version tracking, and capability negotiation.
//
// Session is not safe for concurrent use. It belongs to the editor's
// main goroutine; the only concurrency is the worker goroutine, which
// communicates exclusively through its event queue.
type Session struct {
	cfg    ServerConfig
	state  State
	diags  *DiagnosticStore
	worker *Worker

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	waitCh chan int

	nextID  int64
	pending map[int64]RequestKind

	caps            ServerCapabilities
	tokensSupported bool
	rangeSupported  bool
	legend          []string

	docPath     string
	docURI      DocumentURI
	docVersion  int
	pendingOpen string
}

// NewSession creates a session in the Off state.
func NewSession(cfg ServerConfig) *Session {
	return &Session{
		cfg:     cfg,
		diags:   NewDiagnosticStore(),
		pending: make(map[int64]RequestKind),
	}
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Config returns the server configuration the session was created with.
func (s *Session) Config() ServerConfig { return s.cfg }

// Diagnostics returns the session's diagnostic store.
func (s *Session) Diagnostics() *DiagnosticStore { return s.diags }

// TokensSupported reports whether the server offers semantic tokens.
func (s *Session) TokensSupported() bool { return s.tokensSupported }

// RangeSupported reports whether semanticTokens/range is available.
func (s *Session) RangeSupported() bool { return s.rangeSupported }

// Legend returns the session's token-type legend, fixed at initialize.
func (s *Session) Legend() []string { return s.legend }

// DocumentURI returns the open document's URI, if any.
func (s *Session) DocumentURI() DocumentURI { return s.docURI }

// DocumentVersion returns the open document's version.
func (s *Session) DocumentVersion() int { return s.docVersion }

// PendingCount returns the number of unanswered requests.
func (s *Session) PendingCount() int { return len(s.pending) }

// Worker returns the session's event source, nil when Off.
func (s *Session) Worker() *Worker { return s.worker }

// Start spawns the server process, begins the worker, and sends
// initialize. The document content is a snapshot; didOpen is deferred
// until the initialize response arrives.
func (s *Session) Start(path, content string) error {
	if s.state != StateOff {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return &ServerError{LanguageID: s.cfg.LanguageID, Err: fmt.Errorf("spawn: %w", err)}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.waitCh = make(chan int, 1)
	go func(cmd *exec.Cmd, ch chan int) {
		code := 0
		if err := cmd.Wait(); err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}
		ch <- code
	}(cmd, s.waitCh)

	s.worker = NewWorker(0)
	go s.worker.Run(stdout)

	s.docPath = path
	s.docURI = FilePathToURI(path)
	s.docVersion = 0
	s.pendingOpen = content
	s.state = StateStarting

	id := s.allocID()
	msg, err := NewInitializeRequest(id, os.Getpid(), FilePathToURI(workspaceRoot(path)))
	if err != nil {
		s.ForceStop()
		return err
	}
	if err := s.write(msg); err != nil {
		s.ForceStop()
		return err
	}
	s.pending[id] = KindInitialize
	return nil
}

// workspaceRoot picks the directory of the opened file as the root.
func workspaceRoot(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Dir(path)
}

// HandleEvent applies one worker event to the session and returns the
// typed outcome for the editor to act on.
func (s *Session) HandleEvent(ev Event) Dispatch {
	switch ev.Kind {
	case EventDiagnostics:
		s.diags.Set(ev.URI, ev.Diagnostics)
		return Dispatch{Kind: DispatchDiagnostics, URI: ev.URI}

	case EventError:
		// The request failed; its pending entry is consumed here so the
		// id is never matched again. The id rides along so callers can
		// release anything they keyed on it.
		delete(s.pending, ev.ID)
		return Dispatch{Kind: DispatchStatus, RequestID: ev.ID, Status: ev.Message}

	case EventServerExited:
		code := ev.ExitCode
		select {
		case c := <-s.waitCh:
			code = c
		default:
		}
		s.reset()
		return Dispatch{Kind: DispatchExited, ExitCode: code}

	case EventResponse:
		kind, ok := s.pending[ev.ID]
		if !ok {
			return Dispatch{Kind: DispatchNone}
		}
		delete(s.pending, ev.ID)
		return s.dispatchResponse(ev.ID, kind, ev.Result)
	}
	return Dispatch{Kind: DispatchNone}
}

// dispatchResponse interprets a raw result by its originating kind.
func (s *Session) dispatchResponse(id int64, kind RequestKind, raw json.RawMessage) Dispatch {
	switch kind {
	case KindInitialize:
		return s.finishInitialize(raw)

	case KindShutdown:
		if msg, err := NewExitNotification(); err == nil {
			_ = s.write(msg)
		}
		s.stopProcess(s.cfg.Timeout)
		s.reset()
		return Dispatch{Kind: DispatchStatus, Status: "language server stopped"}

	case KindCompletion:
		list, err := ParseCompletionResult(raw)
		if err != nil {
			return Dispatch{Kind: DispatchStatus, Status: "completion: " + err.Error()}
		}
		return Dispatch{Kind: DispatchCompletion, RequestID: id, Completion: list}

	case KindDefinition:
		locs, err := ParseLocationResult(raw)
		if err != nil {
			return Dispatch{Kind: DispatchStatus, Status: "definition: " + err.Error()}
		}
		return Dispatch{Kind: DispatchDefinition, RequestID: id, Locations: locs}

	case KindTokensFull, KindTokensRange:
		return Dispatch{Kind: DispatchTokens, RequestID: id, RequestKind: kind, Raw: raw}
	}
	return Dispatch{Kind: DispatchNone}
}

// finishInitialize records capabilities, sends initialized plus the
// deferred didOpen, and moves to Running.
func (s *Session) finishInitialize(raw json.RawMessage) Dispatch {
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.ForceStop()
		return Dispatch{Kind: DispatchStatus, Status: "initialize: " + err.Error()}
	}

	s.caps = result.Capabilities
	if p := result.Capabilities.SemanticTokensProvider; p != nil {
		s.tokensSupported = HasCapability(p.Full)
		s.rangeSupported = HasCapability(p.Range)
		s.legend = p.Legend.TokenTypes
	}

	if msg, err := NewInitializedNotification(); err == nil {
		_ = s.write(msg)
	}

	s.docVersion = 1
	if msg, err := NewDidOpenNotification(s.docURI, s.cfg.LanguageID, s.docVersion, s.pendingOpen); err == nil {
		_ = s.write(msg)
	}
	s.pendingOpen = ""

	s.state = StateRunning
	return Dispatch{Kind: DispatchReady}
}

// --- Requests ---

// RequestCompletion issues textDocument/completion and returns the
// request id.
func (s *Session) RequestCompletion(pos Position) (int64, error) {
	if s.state != StateRunning {
		return 0, ErrNotRunning
	}
	if s.caps.CompletionProvider == nil {
		return 0, ErrNotSupported
	}
	id := s.allocID()
	msg, err := NewCompletionRequest(id, s.docURI, pos)
	if err != nil {
		return 0, err
	}
	if err := s.write(msg); err != nil {
		return 0, err
	}
	s.pending[id] = KindCompletion
	return id, nil
}

// RequestDefinition issues textDocument/definition and returns the
// request id.
func (s *Session) RequestDefinition(pos Position) (int64, error) {
	if s.state != StateRunning {
		return 0, ErrNotRunning
	}
	if !HasCapability(s.caps.DefinitionProvider) {
		return 0, ErrNotSupported
	}
	id := s.allocID()
	msg, err := NewDefinitionRequest(id, s.docURI, pos)
	if err != nil {
		return 0, err
	}
	if err := s.write(msg); err != nil {
		return 0, err
	}
	s.pending[id] = KindDefinition
	return id, nil
}

// RequestTokensFull issues semanticTokens/full and returns the id.
func (s *Session) RequestTokensFull() (int64, error) {
	if s.state != StateRunning {
		return 0, ErrNotRunning
	}
	if !s.tokensSupported {
		return 0, ErrNotSupported
	}
	id := s.allocID()
	msg, err := NewSemanticTokensFullRequest(id, s.docURI)
	if err != nil {
		return 0, err
	}
	if err := s.write(msg); err != nil {
		return 0, err
	}
	s.pending[id] = KindTokensFull
	return id, nil
}

// RequestTokensRange issues semanticTokens/range for a line range and
// returns the id.
func (s *Session) RequestTokensRange(rng Range) (int64, error) {
	if s.state != StateRunning {
		return 0, ErrNotRunning
	}
	if !s.rangeSupported {
		return 0, ErrNotSupported
	}
	id := s.allocID()
	msg, err := NewSemanticTokensRangeRequest(id, s.docURI, rng)
	if err != nil {
		return 0, err
	}
	if err := s.write(msg); err != nil {
		return 0, err
	}
	s.pending[id] = KindTokensRange
	return id, nil
}

// --- Document sync ---

// ChangeDocument sends a full-text didChange and bumps the version.
func (s *Session) ChangeDocument(text string) error {
	if s.state != StateRunning {
		return ErrNotRunning
	}
	s.docVersion++
	msg, err := NewDidChangeNotification(s.docURI, s.docVersion, text)
	if err != nil {
		return err
	}
	return s.write(msg)
}

// SwitchDocument closes the current document and opens another on the
// same running server. Per-document state (diagnostics) is cleared; the
// caller resets highlight state.
func (s *Session) SwitchDocument(path, content string) error {
	if s.state != StateRunning {
		return ErrNotRunning
	}

	if s.docURI != "" {
		if msg, err := NewDidCloseNotification(s.docURI); err == nil {
			_ = s.write(msg)
		}
		s.diags.ClearURI(s.docURI)
	}

	s.docPath = path
	s.docURI = FilePathToURI(path)
	s.docVersion = 1
	msg, err := NewDidOpenNotification(s.docURI, s.cfg.LanguageID, s.docVersion, content)
	if err != nil {
		return err
	}
	return s.write(msg)
}

// Handles reports whether this session's server covers the given file.
func (s *Session) Handles(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.cfg.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// --- Lifecycle ---

// Stop begins a graceful shutdown: a shutdown request is sent and the
// session moves to Stopping; the exit notification goes out when the
// response arrives.
func (s *Session) Stop() error {
	switch s.state {
	case StateOff, StateStopping:
		return nil
	case StateStarting:
		// No initialize response yet; nothing graceful to wait for.
		s.ForceStop()
		return nil
	}

	id := s.allocID()
	msg, err := NewShutdownRequest(id)
	if err != nil {
		s.ForceStop()
		return err
	}
	if err := s.write(msg); err != nil {
		s.ForceStop()
		return err
	}
	s.pending[id] = KindShutdown
	s.state = StateStopping
	return nil
}

// ForceStop tears the session down immediately: best-effort
// shutdown+exit, process kill with a bounded wait, event-queue drain,
// and an atomic reset of every session-scoped field. Used when
// switching to an incompatible server.
func (s *Session) ForceStop() {
	if s.state == StateOff {
		return
	}

	if s.stdin != nil {
		if msg, err := NewShutdownRequest(s.allocID()); err == nil {
			_ = s.write(msg)
		}
		if msg, err := NewExitNotification(); err == nil {
			_ = s.write(msg)
		}
	}

	s.stopProcess(s.cfg.Timeout)

	// Discard in-flight events; cross-session ordering is not
	// guaranteed and nothing from this session may leak into the next.
	if s.worker != nil {
		for {
			if _, ok := s.worker.TryNext(); !ok {
				break
			}
		}
	}

	s.reset()
}

// stopProcess closes stdin and kills the process, waiting at most the
// given bound for it to be reaped.
func (s *Session) stopProcess(bound time.Duration) {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.waitCh != nil {
		select {
		case <-s.waitCh:
		case <-time.After(bound):
		}
	}
}

// reset returns every session-scoped field to its initial value in one
// step so no stale ids, legends, or diagnostics leak into the next
// session.
func (s *Session) reset() {
	if s.stdin != nil {
		s.stdin.Close()
	}
	s.cmd = nil
	s.stdin = nil
	s.waitCh = nil
	s.worker = nil
	s.nextID = 0
	s.pending = make(map[int64]RequestKind)
	s.caps = ServerCapabilities{}
	s.tokensSupported = false
	s.rangeSupported = false
	s.legend = nil
	s.docPath = ""
	s.docURI = ""
	s.docVersion = 0
	s.pendingOpen = ""
	s.diags.Clear()
	s.state = StateOff
}

// allocID returns the next request id. Ids start at 1 and are never
// reused within a session.
func (s *Session) allocID() int64 {
	s.nextID++
	return s.nextID
}

// write sends one framed message to the server's stdin.
func (s *Session) write(msg []byte) error {
	if s.stdin == nil {
		return ErrNotRunning
	}
	if _, err := s.stdin.Write(msg); err != nil {
		return fmt.Errorf("write to server: %w", err)
	}
	return nil
}
