// Package lsp implements the Language Server Protocol client core for
// Squall: wire framing and message builders, the background reader that
// turns server output into typed events, and the main-thread session
// controller that owns process lifecycle, request correlation, and
// capability negotiation.
//
// # Architecture
//
//   - Codec: Content-Length framing plus JSON-RPC 2.0 message builders
//   - Worker: one goroutine per session blocking on the server's stdout,
//     classifying messages and forwarding Event values through a queue
//   - Session: main-thread state machine (Off/Starting/Running/Stopping)
//     with the pending-request table and document tracking
//   - Registry: file extension to server launch command resolution
//   - Supervisor: restart policy with exponential backoff after crashes
//
// # Threading
//
// The Session is deliberately not safe for concurrent use. It is owned
// by the editor's main goroutine, which drains Worker events through a
// non-blocking receive each UI tick. The Worker never touches session
// state; it only sends immutable events, so the session needs no locks.
//
// # Failure model
//
// Malformed messages are dropped and decoding continues. A JSON-RPC
// error response surfaces as a status event. EOF on the server's stdout
// is the only way the worker ends; it produces a ServerExited event and
// the session resets every session-scoped field in one step. Nothing in
// this package panics; every failure degrades to "feature unavailable".
package lsp
