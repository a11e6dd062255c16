package lsp

import "encoding/json"

// EventKind tags the variants of Event.
type EventKind int

const (
	// EventResponse carries the raw result of a request.
	EventResponse EventKind = iota
	// EventDiagnostics carries a publishDiagnostics payload.
	EventDiagnostics
	// EventError carries a server-reported error message.
	EventError
	// EventServerExited reports EOF on the server's output.
	EventServerExited
)

// String returns a human-readable kind name.
func (k EventKind) String() string {
	switch k {
	case EventResponse:
		return "response"
	case EventDiagnostics:
		return "diagnostics"
	case EventError:
		return "error"
	case EventServerExited:
		return "server-exited"
	default:
		return "unknown"
	}
}

// Event is one fully-formed, immutable message from the worker to the
// session controller. Only the fields for the tagged kind are set.
// Result stays raw: its shape depends on which request produced it, and
// only the session knows the originating request kind.
type Event struct {
	Kind EventKind

	// EventResponse and EventError
	ID     int64
	Result json.RawMessage

	// EventDiagnostics
	URI         DocumentURI
	Diagnostics []Diagnostic

	// EventError
	Message string

	// EventServerExited
	ExitCode int
}
