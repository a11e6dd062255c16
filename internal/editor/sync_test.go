package editor

import (
	"testing"

	"github.com/dshills/squall/internal/engine/buffer"
)

func TestDocSync_BoundedSteps(t *testing.T) {
	b := buffer.FromString("a\nb\nc\nd\ne")

	var ds docSync
	ds.begin(b.Revision())

	steps := 0
	var text string
	for {
		out, done := ds.step(b, 2)
		steps++
		if done {
			text = out
			break
		}
		if steps > 10 {
			t.Fatal("assembly never completed")
		}
	}

	if steps != 3 {
		t.Errorf("steps = %d, want 3 for 5 lines at 2 per step", steps)
	}
	if text != b.Text() {
		t.Errorf("assembled %q, want %q", text, b.Text())
	}
}

func TestDocSync_RestartsOnRevisionChange(t *testing.T) {
	b := buffer.FromString("one\ntwo\nthree\nfour")

	var ds docSync
	ds.begin(b.Revision())
	ds.step(b, 2)

	// The buffer changes under the assembly; the partial join must be
	// discarded, not patched.
	b.ReplaceLine(0, "ONE")

	var text string
	for i := 0; i < 10; i++ {
		if out, done := ds.step(b, 2); done {
			text = out
			break
		}
	}

	if text != b.Text() {
		t.Errorf("assembled %q, want %q", text, b.Text())
	}
}

func TestDocSync_InactiveStepIsNoop(t *testing.T) {
	b := buffer.FromString("x")
	var ds docSync
	if text, done := ds.step(b, 10); done || text != "" {
		t.Errorf("inactive step produced %q done=%v", text, done)
	}
}
