package loader

import "bytes"

// SplitLines parses buf into complete lines, splitting on '\n' and
// stripping one trailing '\r' per line. A trailing fragment with no
// terminator is never returned as a line; it is appended to carry and
// prepended to the next call's input. The carry is mutated in place so
// repeated calls compose across arbitrary read boundaries: parsing a
// text in one call or in any sequence of chunks yields the same lines.
func SplitLines(buf []byte, carry *[]byte) []string {
	if len(buf) == 0 {
		return nil
	}

	// No terminator at all: the whole chunk joins the carry.
	nl := bytes.IndexByte(buf, '\n')
	if nl < 0 {
		*carry = append(*carry, buf...)
		return nil
	}

	lines := make([]string, 0, bytes.Count(buf, []byte{'\n'}))

	// First line completes the carry.
	first := buf[:nl]
	if len(*carry) > 0 {
		joined := append(*carry, first...)
		lines = append(lines, string(trimCR(joined)))
		*carry = (*carry)[:0]
	} else {
		lines = append(lines, string(trimCR(first)))
	}

	rest := buf[nl+1:]
	for {
		nl = bytes.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		lines = append(lines, string(trimCR(rest[:nl])))
		rest = rest[nl+1:]
	}

	if len(rest) > 0 {
		*carry = append(*carry, rest...)
	}
	return lines
}

// trimCR strips a single trailing carriage return.
func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

// sectionBoundaries partitions buf into at most n contiguous sections
// for parallel parsing. Boundaries are strictly increasing, start at 0,
// end at len(buf), and every interior boundary sits one byte past a
// line terminator so no section splits a line. Sections that would
// collapse to zero length are merged into their neighbor.
func sectionBoundaries(buf []byte, n int) []int {
	if n < 1 {
		n = 1
	}
	bounds := []int{0}
	if len(buf) == 0 {
		return append(bounds, 0)
	}
	step := len(buf) / n
	if step == 0 {
		step = len(buf)
	}
	for i := 1; i < n; i++ {
		target := i * step
		prev := bounds[len(bounds)-1]
		if target <= prev {
			continue
		}
		// Scan forward to the byte after the next newline.
		nl := bytes.IndexByte(buf[target:], '\n')
		if nl < 0 {
			break
		}
		cut := target + nl + 1
		if cut <= prev || cut >= len(buf) {
			continue
		}
		bounds = append(bounds, cut)
	}
	return append(bounds, len(buf))
}
