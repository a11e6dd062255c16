// Package editor coordinates the buffer, the file loader, the language
// server session, and the highlight engine from a single goroutine.
//
// All state in this package is owned by the main loop. Background work
// (the loader session, the server's stdout reader) communicates only
// through buffered channels, and the editor drains those channels with
// non-blocking receives inside Tick. A tick applies, in order: a
// bounded number of loader batches, every queued server event, one
// step of document synchronization, and at most a couple of highlight
// requests. Nothing in a tick blocks, so the caller can run it from a
// UI loop at frame rate.
package editor
