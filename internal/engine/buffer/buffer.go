package buffer

import "strings"

// Buffer holds document content as a slice of lines without their
// newline terminators. The empty buffer has zero lines; a freshly
// created document has a single empty line.
type Buffer struct {
	lines    []string
	revision uint64
}

// New returns a buffer containing a single empty line.
func New() *Buffer {
	return &Buffer{lines: []string{""}}
}

// FromString builds a buffer by splitting s on newlines. CR bytes
// before a newline are stripped so CRLF input loads cleanly.
func FromString(s string) *Buffer {
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		if n := len(ln); n > 0 && ln[n-1] == '\r' {
			lines[i] = ln[:n-1]
		}
	}
	return &Buffer{lines: lines}
}

// Revision returns a counter bumped on every mutation. Equal revisions
// mean identical content; the synchronization loop uses it to decide
// whether the server's copy is stale.
func (b *Buffer) Revision() uint64 { return b.revision }

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int { return len(b.lines) }

// Line returns line i, or "" when i is out of range.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// Len returns the byte length of the joined document.
func (b *Buffer) Len() int64 {
	if len(b.lines) == 0 {
		return 0
	}
	total := int64(len(b.lines) - 1) // newlines
	for _, ln := range b.lines {
		total += int64(len(ln))
	}
	return total
}

// Text joins the whole buffer into a single string. Prefer AppendRange
// when assembling large documents incrementally.
func (b *Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// AppendRange writes lines [start,end) into sb, each followed by a
// newline except the buffer's final line. Repeated calls over adjacent
// ranges reproduce Text() exactly, which is what the incremental
// document-sync assembly relies on.
func (b *Buffer) AppendRange(sb *strings.Builder, start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(b.lines) {
		end = len(b.lines)
	}
	for i := start; i < end; i++ {
		sb.WriteString(b.lines[i])
		if i != len(b.lines)-1 {
			sb.WriteByte('\n')
		}
	}
}

// AppendLines adds loader batch lines to the end of the buffer.
func (b *Buffer) AppendLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	b.lines = append(b.lines, lines...)
	b.revision++
}

// SetLines replaces the entire content, for initial loads that arrive
// in one piece.
func (b *Buffer) SetLines(lines []string) {
	b.lines = append(b.lines[:0:0], lines...)
	b.revision++
}

// ReplaceLine overwrites line i. Out-of-range indices are ignored.
func (b *Buffer) ReplaceLine(i int, s string) {
	if i < 0 || i >= len(b.lines) {
		return
	}
	b.lines[i] = s
	b.revision++
}

// InsertLines inserts lines before index at. at is clamped to the
// valid range.
func (b *Buffer) InsertLines(at int, lines []string) {
	if len(lines) == 0 {
		return
	}
	if at < 0 {
		at = 0
	}
	if at > len(b.lines) {
		at = len(b.lines)
	}
	b.lines = append(b.lines[:at], append(append([]string(nil), lines...), b.lines[at:]...)...)
	b.revision++
}

// RemoveLines deletes n lines starting at index at.
func (b *Buffer) RemoveLines(at, n int) {
	if at < 0 || at >= len(b.lines) || n <= 0 {
		return
	}
	if at+n > len(b.lines) {
		n = len(b.lines) - at
	}
	b.lines = append(b.lines[:at], b.lines[at+n:]...)
	b.revision++
}

// InsertChars inserts s into line at byte column col. The column is
// clamped to the line length.
func (b *Buffer) InsertChars(line, col int, s string) {
	if line < 0 || line >= len(b.lines) || s == "" {
		return
	}
	ln := b.lines[line]
	if col < 0 {
		col = 0
	}
	if col > len(ln) {
		col = len(ln)
	}
	b.lines[line] = ln[:col] + s + ln[col:]
	b.revision++
}

// DeleteChars removes n bytes from line starting at byte column col.
func (b *Buffer) DeleteChars(line, col, n int) {
	if line < 0 || line >= len(b.lines) || n <= 0 {
		return
	}
	ln := b.lines[line]
	if col < 0 || col >= len(ln) {
		return
	}
	if col+n > len(ln) {
		n = len(ln) - col
	}
	b.lines[line] = ln[:col] + ln[col+n:]
	b.revision++
}

// SplitLine breaks line at byte column col, moving the tail onto a new
// following line.
func (b *Buffer) SplitLine(line, col int) {
	if line < 0 || line >= len(b.lines) {
		return
	}
	ln := b.lines[line]
	if col < 0 {
		col = 0
	}
	if col > len(ln) {
		col = len(ln)
	}
	head, tail := ln[:col], ln[col:]
	b.lines[line] = head
	b.InsertLines(line+1, []string{tail})
}

// JoinLines appends line+1 onto line and removes it. It returns the
// byte column where the joined text begins, for cursor placement and
// token shifting, and false when there is no following line.
func (b *Buffer) JoinLines(line int) (joinCol int, ok bool) {
	if line < 0 || line+1 >= len(b.lines) {
		return 0, false
	}
	joinCol = len(b.lines[line])
	b.lines[line] += b.lines[line+1]
	b.RemoveLines(line+1, 1)
	return joinCol, true
}
