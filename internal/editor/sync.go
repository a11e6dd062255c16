package editor

import (
	"strings"

	"github.com/dshills/squall/internal/engine/buffer"
)

// docSync assembles the full document text for a didChange
// notification across ticks, joining a bounded number of lines per
// step so a multi-hundred-megabyte buffer never stalls a frame.
//
// The assembly is pinned to the buffer revision it started from. If
// the buffer changes mid-assembly the partial join is discarded and
// the next step starts over against the new revision.
type docSync struct {
	active bool
	rev    uint64
	next   int
	sb     strings.Builder
}

// begin starts assembling the given revision from line zero.
func (ds *docSync) begin(rev uint64) {
	ds.active = true
	ds.rev = rev
	ds.next = 0
	ds.sb.Reset()
}

// step joins up to maxLines more lines. When the end of the buffer is
// reached it returns the complete text with done=true and deactivates.
// A revision mismatch restarts the assembly instead of producing text
// that never existed.
func (ds *docSync) step(b *buffer.Buffer, maxLines int) (text string, done bool) {
	if !ds.active {
		return "", false
	}
	if b.Revision() != ds.rev {
		ds.begin(b.Revision())
	}

	end := ds.next + maxLines
	if end > b.LineCount() {
		end = b.LineCount()
	}
	b.AppendRange(&ds.sb, ds.next, end)
	ds.next = end

	if ds.next >= b.LineCount() {
		ds.active = false
		return ds.sb.String(), true
	}
	return "", false
}
