package highlight

// Token is one semantic token on a line: a column span plus an index
// into the session's token-type legend. Modifiers are consumed from the
// wire but not stored.
type Token struct {
	Col    int
	Length int
	Type   int
}

// Store holds decoded tokens indexed by 0-based line number. It is
// owned and mutated by the main goroutine only.
type Store struct {
	byLine map[int][]Token
}

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{byLine: make(map[int][]Token)}
}

// Line returns the tokens for a line, in column order.
func (s *Store) Line(line int) []Token {
	return s.byLine[line]
}

// Lines returns the number of lines holding at least one token.
func (s *Store) Lines() int {
	return len(s.byLine)
}

// Clear drops all tokens, for session reset and document switches.
func (s *Store) Clear() {
	s.byLine = make(map[int][]Token)
}

// Decode expands delta-encoded quintuples (deltaLine, deltaStartCol,
// length, tokenType, modifiers) into the store. The first token seen
// for a line within one pass replaces that line's previous list, so a
// re-fetched range fully supersedes its old tokens. Trailing partial
// quintuples are ignored.
func (s *Store) Decode(data []uint32) {
	line := 0
	col := 0
	seen := make(map[int]bool)

	for i := 0; i+4 < len(data); i += 5 {
		deltaLine := int(data[i])
		deltaCol := int(data[i+1])
		length := int(data[i+2])
		tokenType := int(data[i+3])
		// data[i+4] carries modifiers, which are not stored.

		if deltaLine > 0 {
			line += deltaLine
			col = deltaCol
		} else {
			col += deltaCol
		}

		if !seen[line] {
			seen[line] = true
			delete(s.byLine, line)
		}
		s.byLine[line] = append(s.byLine[line], Token{Col: col, Length: length, Type: tokenType})
	}
}

// --- Edit shifting ---
//
// Edits adjust stored tokens in place so highlighting tracks the text
// until the next server response. A token fully consumed by a deletion
// is removed.

// InsertChars shifts tokens on a line right of col by n columns. A
// token containing col grows instead of moving.
func (s *Store) InsertChars(line, col, n int) {
	tokens := s.byLine[line]
	for i := range tokens {
		tok := &tokens[i]
		switch {
		case tok.Col >= col:
			tok.Col += n
		case tok.Col+tok.Length > col:
			tok.Length += n
		}
	}
}

// DeleteChars removes n columns starting at col on a line, shrinking or
// dropping tokens the deletion overlaps.
func (s *Store) DeleteChars(line, col, n int) {
	tokens := s.byLine[line]
	if len(tokens) == 0 {
		return
	}
	end := col + n
	out := tokens[:0]
	for _, tok := range tokens {
		tokEnd := tok.Col + tok.Length
		switch {
		case tokEnd <= col:
			// Entirely left of the deletion.
		case tok.Col >= end:
			tok.Col -= n
		case tok.Col >= col && tokEnd <= end:
			// Fully consumed.
			continue
		case tok.Col < col && tokEnd > end:
			tok.Length -= n
		case tok.Col < col:
			tok.Length = col - tok.Col
		default:
			tok.Length = tokEnd - end
			tok.Col = col
		}
		if tok.Length > 0 {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		delete(s.byLine, line)
		return
	}
	s.byLine[line] = out
}

// InsertLines shifts all token lines at or below line down by n, for
// newline insertion.
func (s *Store) InsertLines(line, n int) {
	s.shiftLines(line, n)
}

// DeleteLines removes n lines starting at line and shifts the rest up.
func (s *Store) DeleteLines(line, n int) {
	for i := 0; i < n; i++ {
		delete(s.byLine, line+i)
	}
	s.shiftLines(line+n, -n)
}

// SplitLine breaks a line at col: tokens at or beyond col move to the
// start of the next line, a token straddling col is truncated.
func (s *Store) SplitLine(line, col int) {
	tokens := s.byLine[line]
	s.shiftLines(line+1, 1)

	var stay, moved []Token
	for _, tok := range tokens {
		switch {
		case tok.Col >= col:
			tok.Col -= col
			moved = append(moved, tok)
		case tok.Col+tok.Length > col:
			tok.Length = col - tok.Col
			stay = append(stay, tok)
		default:
			stay = append(stay, tok)
		}
	}

	if len(stay) > 0 {
		s.byLine[line] = stay
	} else {
		delete(s.byLine, line)
	}
	if len(moved) > 0 {
		s.byLine[line+1] = moved
	}
}

// JoinLines appends line+1's tokens to line, offset by joinCol (the
// length of line before the join), then shifts the remainder up.
func (s *Store) JoinLines(line, joinCol int) {
	next := s.byLine[line+1]
	for _, tok := range next {
		tok.Col += joinCol
		s.byLine[line] = append(s.byLine[line], tok)
	}
	delete(s.byLine, line+1)
	s.shiftLines(line+2, -1)
}

// shiftLines moves every token list from fromLine onward by delta.
func (s *Store) shiftLines(fromLine, delta int) {
	if delta == 0 || len(s.byLine) == 0 {
		return
	}

	moved := make(map[int][]Token)
	for line, tokens := range s.byLine {
		if line >= fromLine {
			moved[line+delta] = tokens
			delete(s.byLine, line)
		}
	}
	for line, tokens := range moved {
		s.byLine[line] = tokens
	}
}
