// Package loader reads files into line batches without blocking the UI.
//
// Small files are streamed in fixed-size chunks. Large files are read in
// one shot, partitioned into line-aligned sections, and parsed by a
// bounded pool of workers whose results are re-assembled in file order.
// All output reaches the consumer through a buffered signal channel with
// a non-blocking receive, so the editor's main loop can drain batches a
// few at a time between keystrokes.
//
// A load session ends with exactly one Done signal, even when the load
// is cancelled or the file cannot be opened.
package loader
