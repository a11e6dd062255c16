// Package highlight turns LSP semantic-token responses into per-line
// token lists and schedules the requests that keep a whole file
// highlighted without blocking the editor.
//
// Token data arrives delta-encoded; Decode expands it into a Store
// whose per-line lists are replaced, never appended, so a re-fetched
// range can't leave stale tokens behind. Local edits shift stored
// tokens in place to avoid visible flicker between a keystroke and the
// next server round-trip.
//
// The Scheduler splits work between foreground viewport requests and a
// single-flight background sweep that advances through the file one
// chunk at a time. Completed background coverage takes precedence over
// a stale foreground fetch for the same lines.
package highlight
