package editor

import (
	"fmt"

	"github.com/dshills/squall/internal/engine/buffer"
	"github.com/dshills/squall/internal/highlight"
	"github.com/dshills/squall/internal/loader"
	"github.com/dshills/squall/internal/lsp"
)

// neverSynced forces a full-text synchronization after a didOpen that
// carried empty content. Buffer revisions are small counters and can
// never collide with it.
const neverSynced = ^uint64(0)

// Options holds the editor tunables. Zero fields use defaults.
type Options struct {
	Loader     loader.Config
	Supervisor lsp.SupervisorConfig

	// ChunkLines is the background highlight sweep size.
	ChunkLines int
	// SignalsPerTick bounds how many loader batches one tick applies.
	SignalsPerTick int
	// SyncLinesPerTick bounds the document-sync join work per tick.
	SyncLinesPerTick int
	// StatusDepth bounds the status message queue.
	StatusDepth int

	Log *Logger
}

func (o Options) withDefaults() Options {
	if o.ChunkLines <= 0 {
		o.ChunkLines = highlight.DefaultChunkLines
	}
	if o.SignalsPerTick <= 0 {
		o.SignalsPerTick = 4
	}
	if o.SyncLinesPerTick <= 0 {
		o.SyncLinesPerTick = 20000
	}
	if o.StatusDepth <= 0 {
		o.StatusDepth = 32
	}
	if o.Log == nil {
		o.Log = NullLogger
	}
	return o
}

// Editor owns the open document and everything attached to it: the
// line buffer, the streaming loader, the language server session, the
// semantic token store, and the request scheduling that keeps them
// consistent. All methods must be called from the same goroutine.
type Editor struct {
	opts Options
	log  *Logger

	registry *lsp.Registry
	session  *lsp.Session
	sup      *lsp.Supervisor

	path        string
	buf         *buffer.Buffer
	ld          *loader.Loader
	loading     bool
	loadedBytes int64

	tokens *highlight.Store
	sched  *highlight.Scheduler
	theme  *highlight.Theme

	sync      docSync
	syncedRev uint64

	viewTop    int
	viewHeight int
	viewID     int64
	viewEnd    int

	// Full-document token fallback for servers without range support.
	fullFresh bool
	fullID    int64

	completionID int64
	completion   *lsp.CompletionList
	definitionID int64
	definitions  []lsp.Location

	status  *StatusQueue
	noDiags *lsp.DiagnosticStore
}

// New creates an editor with no document open.
func New(registry *lsp.Registry, opts Options) *Editor {
	opts = opts.withDefaults()
	return &Editor{
		opts:     opts,
		log:      opts.Log.WithComponent("editor"),
		registry: registry,
		buf:      new(buffer.Buffer),
		tokens:   highlight.NewStore(),
		sched:    highlight.NewScheduler(opts.ChunkLines),
		status:   NewStatusQueue(opts.StatusDepth),
		noDiags:  lsp.NewDiagnosticStore(),
	}
}

// Buffer returns the open document's line buffer.
func (e *Editor) Buffer() *buffer.Buffer { return e.buf }

// Tokens returns the semantic token store for rendering.
func (e *Editor) Tokens() *highlight.Store { return e.tokens }

// Theme returns the token color theme, nil before a server is ready.
func (e *Editor) Theme() *highlight.Theme { return e.theme }

// Diagnostics returns the live diagnostic store. When no session
// exists it returns an empty store so render code has no nil path.
func (e *Editor) Diagnostics() *lsp.DiagnosticStore {
	if e.session != nil {
		return e.session.Diagnostics()
	}
	return e.noDiags
}

// Session returns the language server session, nil when none exists.
func (e *Editor) Session() *lsp.Session { return e.session }

// Status returns the status message queue.
func (e *Editor) Status() *StatusQueue { return e.status }

// Path returns the open file's path.
func (e *Editor) Path() string { return e.path }

// Loading reports whether a load session is still streaming batches.
func (e *Editor) Loading() bool { return e.loading }

// PauseLoading suspends or resumes the streaming load. While paused the
// loader stops reading; it buffers nothing.
func (e *Editor) PauseLoading(p bool) {
	if e.ld != nil {
		e.ld.Pause(p)
	}
}

// LoadedBytes returns the byte count of the completed load, zero while
// streaming.
func (e *Editor) LoadedBytes() int64 { return e.loadedBytes }

// --- Document lifecycle ---

// OpenFile starts loading path and attaches a language server for it.
// A previous load session is cancelled; a running server that handles
// the new file keeps running and switches documents, anything else is
// torn down and replaced.
func (e *Editor) OpenFile(path string) error {
	if e.ld != nil {
		e.ld.Cancel()
		e.ld = nil
	}

	e.path = path
	e.buf = new(buffer.Buffer)
	e.loadedBytes = 0
	e.tokens.Clear()
	e.sched.Reset(0)
	e.dropResults()

	ld := loader.New(e.opts.Loader)
	if err := ld.Start(path, 0); err != nil {
		return err
	}
	e.ld = ld
	e.loading = true

	switch {
	case e.session != nil && e.session.State() == lsp.StateRunning && e.session.Handles(path):
		// Same server, new document. Content streams in afterward via
		// the sync loop.
		if err := e.session.SwitchDocument(path, ""); err != nil {
			e.status.Push("language server: " + err.Error())
		}
		e.syncedRev = neverSynced
	case e.session != nil && e.session.State() != lsp.StateOff:
		e.session.ForceStop()
		e.theme = nil
		e.startServerFor(path)
	default:
		e.theme = nil
		e.startServerFor(path)
	}
	return nil
}

// Shutdown stops the loader and begins a graceful server shutdown.
// Ticking must continue until the session reaches the Off state.
func (e *Editor) Shutdown() {
	if e.ld != nil {
		e.ld.Cancel()
		e.ld = nil
		e.loading = false
	}
	if e.sup != nil {
		e.sup.Reset()
	}
	if e.session != nil {
		if err := e.session.Stop(); err != nil {
			e.log.Warn("shutdown: %v", err)
		}
	}
}

// startServerFor spawns a fresh session for path's language, if one is
// registered.
func (e *Editor) startServerFor(path string) {
	cfg, ok := e.registry.Lookup(path)
	if !ok {
		e.session = nil
		e.sup = nil
		e.log.Debug("no language server for %s", path)
		return
	}
	e.session = lsp.NewSession(cfg)
	e.sup = lsp.NewSupervisor(e.opts.Supervisor)
	e.startSession()
}

// startSession spawns the server for the current path. The didOpen
// carries empty content; the sync loop streams the real text once the
// server is running.
func (e *Editor) startSession() {
	if err := e.session.Start(e.path, ""); err != nil {
		e.status.Push("language server: " + err.Error())
		e.log.Error("start %s: %v", e.session.Config().LanguageID, err)
		// Spawn failures consume restart budget like crashes do, so a
		// missing binary cannot retry every tick.
		if !e.sup.NoteExited() {
			e.status.Push("language server restart budget exhausted")
		}
		return
	}
	e.sup.NoteStarted()
	e.syncedRev = neverSynced
	e.log.Info("started %s server", e.session.Config().LanguageID)
}

// --- Edits ---

// InsertChars inserts text (no newlines) into a line and keeps the
// token store aligned.
func (e *Editor) InsertChars(line, col int, s string) {
	e.buf.InsertChars(line, col, s)
	e.tokens.InsertChars(line, col, len(s))
	e.markDirty()
}

// DeleteChars removes n bytes from a line.
func (e *Editor) DeleteChars(line, col, n int) {
	e.buf.DeleteChars(line, col, n)
	e.tokens.DeleteChars(line, col, n)
	e.markDirty()
}

// SplitLine breaks a line at col.
func (e *Editor) SplitLine(line, col int) {
	e.buf.SplitLine(line, col)
	e.tokens.SplitLine(line, col)
	e.sched.ExtendTotal(e.buf.LineCount())
	e.markDirty()
}

// JoinLines merges line+1 onto line.
func (e *Editor) JoinLines(line int) {
	joinCol, ok := e.buf.JoinLines(line)
	if !ok {
		return
	}
	e.tokens.JoinLines(line, joinCol)
	e.markDirty()
}

// markDirty flags the visible tokens stale after an edit. Shifted
// tokens keep rendering; the viewport is re-fetched when the server
// catches up.
func (e *Editor) markDirty() {
	e.sched.InvalidateViewport()
	e.fullFresh = false
}

// --- Requests ---

// RequestCompletion asks for completions at a byte-column position.
// Only the most recent request's result is kept.
func (e *Editor) RequestCompletion(line, col int) error {
	if e.session == nil {
		return lsp.ErrNoServer
	}
	pos := lsp.Position{Line: line, Character: e.buf.UTF16Col(line, col)}
	id, err := e.session.RequestCompletion(pos)
	if err != nil {
		return err
	}
	e.completionID = id
	e.completion = nil
	return nil
}

// RequestDefinition asks for the definition at a byte-column position.
func (e *Editor) RequestDefinition(line, col int) error {
	if e.session == nil {
		return lsp.ErrNoServer
	}
	pos := lsp.Position{Line: line, Character: e.buf.UTF16Col(line, col)}
	id, err := e.session.RequestDefinition(pos)
	if err != nil {
		return err
	}
	e.definitionID = id
	e.definitions = nil
	return nil
}

// TakeCompletion consumes the latest completion result.
func (e *Editor) TakeCompletion() (*lsp.CompletionList, bool) {
	if e.completion == nil {
		return nil, false
	}
	list := e.completion
	e.completion = nil
	return list, true
}

// TakeDefinitions consumes the latest definition result.
func (e *Editor) TakeDefinitions() ([]lsp.Location, bool) {
	if e.definitions == nil {
		return nil, false
	}
	locs := e.definitions
	e.definitions = nil
	return locs, true
}

// dropResults discards request results that belong to a previous
// document.
func (e *Editor) dropResults() {
	e.completionID = 0
	e.completion = nil
	e.definitionID = 0
	e.definitions = nil
	e.viewID = 0
	e.viewEnd = 0
	e.fullID = 0
	e.fullFresh = false
}

// SetViewport tells the editor which lines are visible so foreground
// highlight requests cover them.
func (e *Editor) SetViewport(top, height int) {
	e.viewTop = top
	e.viewHeight = height
}

// --- Tick ---

// Tick runs one iteration of the synchronization loop and reports
// whether anything changed that warrants a redraw. It never blocks.
func (e *Editor) Tick() bool {
	redraw := e.applyLoaderSignals()
	if e.applyServerEvents() {
		redraw = true
	}
	e.stepDocumentSync()
	e.scheduleHighlights()
	e.pollSupervisor()
	return redraw
}

// applyLoaderSignals appends up to SignalsPerTick loader batches.
func (e *Editor) applyLoaderSignals() bool {
	if e.ld == nil {
		return false
	}
	changed := false
	for i := 0; i < e.opts.SignalsPerTick; i++ {
		sig, ok := e.ld.TryNext()
		if !ok {
			break
		}
		switch sig.Kind {
		case loader.SignalLines:
			e.buf.AppendLines(sig.Batch.Lines)
			e.loadedBytes += sig.Batch.Bytes
			e.sched.ExtendTotal(e.buf.LineCount())
			changed = true
		case loader.SignalDone:
			e.loading = false
			e.ld = nil
			if sig.Err != nil {
				e.status.Push("load failed: " + sig.Err.Error())
				e.log.Error("load %s: %v", e.path, sig.Err)
			} else {
				e.log.Info("loaded %s: %d lines, %d bytes", e.path, e.buf.LineCount(), e.loadedBytes)
			}
			changed = true
		}
		if e.ld == nil {
			break
		}
	}
	return changed
}

// applyServerEvents drains the session's event queue completely.
func (e *Editor) applyServerEvents() bool {
	if e.session == nil {
		return false
	}
	changed := false
	for {
		w := e.session.Worker()
		if w == nil {
			break
		}
		ev, ok := w.TryNext()
		if !ok {
			break
		}
		if e.handleDispatch(e.session.HandleEvent(ev)) {
			changed = true
		}
	}
	return changed
}

// handleDispatch applies one session outcome to editor state.
func (e *Editor) handleDispatch(d lsp.Dispatch) bool {
	switch d.Kind {
	case lsp.DispatchReady:
		e.theme = highlight.NewTheme(e.session.Legend())
		e.tokens.Clear()
		e.sched.Reset(e.buf.LineCount())
		e.fullFresh = false
		e.status.Push("language server ready")
		e.log.Info("%s server ready, tokens=%v range=%v",
			e.session.Config().LanguageID, e.session.TokensSupported(), e.session.RangeSupported())
		return true

	case lsp.DispatchTokens:
		return e.handleTokens(d)

	case lsp.DispatchCompletion:
		if d.RequestID != e.completionID {
			return false // a newer request superseded this one
		}
		e.completion = d.Completion
		return true

	case lsp.DispatchDefinition:
		if d.RequestID != e.definitionID {
			return false
		}
		e.definitions = d.Locations
		return true

	case lsp.DispatchDiagnostics:
		return true

	case lsp.DispatchStatus:
		e.status.Push(d.Status)
		e.log.Warn("%s", d.Status)
		e.releaseRequest(d.RequestID)
		return true

	case lsp.DispatchExited:
		e.status.Push(fmt.Sprintf("language server exited (code %d)", d.ExitCode))
		e.log.Warn("server exited with code %d", d.ExitCode)
		// Keep tokens for display; every in-flight request is dead.
		e.sched.Reset(e.buf.LineCount())
		e.viewID = 0
		e.fullID = 0
		e.fullFresh = false
		if e.sup != nil && !e.sup.NoteExited() {
			e.status.Push("language server restart budget exhausted")
		}
		return true
	}
	return false
}

// releaseRequest frees in-flight bookkeeping when a request fails. A
// failed sweep chunk stays uncovered so it is fetched again rather than
// skipped.
func (e *Editor) releaseRequest(id int64) {
	if id == 0 {
		return
	}
	e.sched.Release(id)
	if id == e.viewID {
		e.viewID = 0
		e.sched.InvalidateViewport()
	}
	if id == e.fullID {
		e.fullID = 0
	}
}

// handleTokens decodes a semantic token response into the store.
func (e *Editor) handleTokens(d lsp.Dispatch) bool {
	data, _, err := highlight.ScanTokenData(d.Raw)
	if err != nil {
		e.status.Push("tokens: " + err.Error())
		e.releaseRequest(d.RequestID)
		return false
	}

	if d.RequestKind == lsp.KindTokensFull {
		if d.RequestID != e.fullID {
			return false
		}
		e.fullID = 0
		e.tokens.Decode(data)
		e.fullFresh = true
		return true
	}

	// Background sweep responses advance the cursor and always decode.
	if e.sched.OnResponse(d.RequestID) {
		e.tokens.Decode(data)
		return true
	}

	if d.RequestID == e.viewID {
		e.viewID = 0
		if e.viewEnd <= e.sched.CoveredThrough() {
			// The sweep covered these lines while this fetch was in
			// flight; its data is fresher, so the stale result is
			// dropped.
			return false
		}
		e.tokens.Decode(data)
		return true
	}
	return false
}

// stepDocumentSync advances the full-text didChange assembly by one
// bounded step.
func (e *Editor) stepDocumentSync() {
	if e.session == nil || e.session.State() != lsp.StateRunning || e.loading {
		return
	}
	if !e.sync.active {
		if e.buf.Revision() == e.syncedRev {
			return
		}
		e.sync.begin(e.buf.Revision())
	}
	text, done := e.sync.step(e.buf, e.opts.SyncLinesPerTick)
	if !done {
		return
	}
	if err := e.session.ChangeDocument(text); err != nil {
		e.status.Push("sync: " + err.Error())
		return
	}
	e.syncedRev = e.sync.rev
	e.markDirty()
}

// scheduleHighlights issues at most one viewport and one background
// token request per tick, when the server's copy is current.
func (e *Editor) scheduleHighlights() {
	if e.session == nil || e.session.State() != lsp.StateRunning || !e.session.TokensSupported() {
		return
	}
	// Requesting against a stale server copy wastes a round trip.
	if e.loading || e.sync.active || e.buf.Revision() != e.syncedRev {
		return
	}

	if !e.session.RangeSupported() {
		if !e.fullFresh && e.fullID == 0 {
			if id, err := e.session.RequestTokensFull(); err == nil {
				e.fullID = id
			}
		}
		return
	}

	start := e.viewTop
	end := e.viewTop + e.viewHeight
	if end > e.buf.LineCount() {
		end = e.buf.LineCount()
	}
	if e.viewID == 0 && e.sched.ViewportNeeded(start, end) {
		if id, err := e.session.RequestTokensRange(lineRange(start, end)); err == nil {
			e.sched.MarkViewport(start, end)
			e.viewID = id
			e.viewEnd = end
		}
	}

	if bs, be, ok := e.sched.NextBackground(); ok {
		if id, err := e.session.RequestTokensRange(lineRange(bs, be)); err == nil {
			e.sched.MarkBackground(id, be)
		}
	}
}

// pollSupervisor restarts a crashed server once its backoff elapses.
func (e *Editor) pollSupervisor() {
	if e.session == nil || e.sup == nil {
		return
	}
	if e.session.State() != lsp.StateOff || !e.sup.ShouldRestart() {
		return
	}
	e.log.Info("restarting %s server (attempt %d)", e.session.Config().LanguageID, e.sup.Restarts())
	e.startSession()
}

// lineRange covers whole lines [start,end) in protocol coordinates.
func lineRange(start, end int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: start},
		End:   lsp.Position{Line: end},
	}
}
