// Package buffer provides the line-oriented document model. A buffer
// is a slice of lines owned by the main goroutine; loader batches are
// appended as they arrive and edits mutate individual lines in place.
//
// The package deliberately has no locking. All mutation happens on the
// main goroutine, which is also the only reader; background work
// receives immutable copies (joined text for document sync, line
// slices for parsing) rather than sharing the buffer itself.
//
// Columns come in two measures: byte columns index into the Go string,
// UTF-16 columns are what the language server protocol speaks. The
// conversion helpers on Buffer translate between them per line.
package buffer
