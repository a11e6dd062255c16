package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the LSP session.
var (
	// ErrNotRunning indicates the session has no running server.
	ErrNotRunning = errors.New("lsp session not running")

	// ErrAlreadyStarted indicates the session is already live.
	ErrAlreadyStarted = errors.New("lsp session already started")

	// ErrNoServer indicates no server is registered for the file type.
	ErrNoServer = errors.New("no server registered for file type")

	// ErrNotSupported indicates the server lacks the requested capability.
	ErrNotSupported = errors.New("feature not supported by server")

	// ErrNoDocument indicates no document is open in the session.
	ErrNoDocument = errors.New("no document open")

	// ErrServerExited indicates the server process terminated unexpectedly.
	ErrServerExited = errors.New("server exited")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)

// ServerError wraps an error with the language it occurred for.
type ServerError struct {
	LanguageID string
	Err        error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server %s: %v", e.LanguageID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error {
	return e.Err
}
