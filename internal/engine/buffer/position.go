package buffer

import (
	"fmt"
	"unicode/utf8"
)

// Point is a line and byte-column position, both 0-indexed.
type Point struct {
	Line int
	Col  int
}

// String returns a human-readable representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%d:%d)", p.Line, p.Col)
}

// Compare returns -1 if p < other, 0 if equal, 1 if p > other.
func (p Point) Compare(other Point) int {
	switch {
	case p.Line != other.Line:
		if p.Line < other.Line {
			return -1
		}
		return 1
	case p.Col != other.Col:
		if p.Col < other.Col {
			return -1
		}
		return 1
	}
	return 0
}

// Before returns true if p comes before other.
func (p Point) Before(other Point) bool { return p.Compare(other) < 0 }

// UTF16Col converts a byte column on the given line to UTF-16 code
// units, the measure the language server protocol uses.
func (b *Buffer) UTF16Col(line, byteCol int) int {
	s := b.Line(line)
	if byteCol > len(s) {
		byteCol = len(s)
	}
	return utf16Len(s[:byteCol])
}

// ByteCol converts a UTF-16 column on the given line back to a byte
// column. Columns past the end of the line clamp to the line length.
func (b *Buffer) ByteCol(line, utf16Col int) int {
	s := b.Line(line)
	var units, off int
	for _, r := range s {
		if units >= utf16Col {
			break
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		off += utf8.RuneLen(r)
	}
	return off
}

// utf16Len counts UTF-16 code units in s. Runes outside the basic
// multilingual plane take a surrogate pair.
func utf16Len(s string) int {
	var n int
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
