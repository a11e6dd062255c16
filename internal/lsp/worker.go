package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"github.com/tidwall/gjson"
)

// Worker owns one server's output stream for the lifetime of a session.
// It runs on its own goroutine, blocking only on the stream, and
// forwards classified events through a buffered queue. EOF or a read
// failure is the only way the loop ends; it emits EventServerExited and
// returns, so killing the subprocess is how a session terminates it.
type Worker struct {
	events chan Event
}

// NewWorker creates a worker with the given event queue depth.
func NewWorker(depth int) *Worker {
	if depth <= 0 {
		depth = 256
	}
	return &Worker{events: make(chan Event, depth)}
}

// Events returns the worker's output queue. The session drains it with
// a non-blocking receive each tick.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// TryNext performs a non-blocking receive on the event queue.
func (w *Worker) TryNext() (Event, bool) {
	select {
	case ev := <-w.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Run reads framed messages until the stream ends. Call on a dedicated
// goroutine; it never touches session state.
func (w *Worker) Run(r io.Reader) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		body, err := ReadMessage(br)
		if errors.Is(err, errMissingLength) {
			// Skip the malformed message, keep decoding.
			continue
		}
		if err != nil {
			w.events <- Event{Kind: EventServerExited, ExitCode: -1}
			return
		}
		w.classify(body)
	}
}

// classify turns one wire message into zero or one events. Malformed
// bodies are dropped.
func (w *Worker) classify(body []byte) {
	if !gjson.ValidBytes(body) {
		return
	}
	probe := gjson.GetManyBytes(body, "id", "method", "error", "result")
	id, method, errField, result := probe[0], probe[1], probe[2], probe[3]

	// A method without an id is a notification. Only diagnostics are
	// acted on; everything else is silently ignored.
	if method.Exists() && !id.Exists() {
		if method.String() != "textDocument/publishDiagnostics" {
			return
		}
		var p PublishDiagnosticsParams
		if err := json.Unmarshal([]byte(gjson.GetBytes(body, "params").Raw), &p); err != nil {
			return
		}
		w.events <- Event{Kind: EventDiagnostics, URI: p.URI, Diagnostics: p.Diagnostics}
		return
	}

	if !id.Exists() {
		return
	}

	if errField.Exists() {
		var rpcErr RPCError
		if err := json.Unmarshal([]byte(errField.Raw), &rpcErr); err != nil {
			return
		}
		w.events <- Event{Kind: EventError, ID: id.Int(), Message: rpcErr.Error()}
		return
	}

	if result.Exists() {
		// The result stays opaque; interpretation belongs to the
		// session, which knows the originating request kind.
		w.events <- Event{Kind: EventResponse, ID: id.Int(), Result: json.RawMessage(result.Raw)}
	}
}
