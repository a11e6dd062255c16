package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// drain collects a full session's output, failing the test if no Done
// signal arrives within the deadline.
func drain(t *testing.T, l *Loader) ([]string, int64, error) {
	t.Helper()

	var lines []string
	var bytes int64
	var byteBatches int
	deadline := time.After(30 * time.Second)

	for {
		select {
		case sig := <-l.Signals():
			switch sig.Kind {
			case SignalLines:
				lines = append(lines, sig.Batch.Lines...)
				if sig.Batch.Bytes > 0 {
					bytes = sig.Batch.Bytes
					byteBatches++
				}
			case SignalDone:
				if byteBatches > 1 {
					t.Errorf("byte count carried by %d batches, want at most 1", byteBatches)
				}
				return lines, bytes, sig.Err
			}
		case <-deadline:
			t.Fatal("timeout waiting for Done signal")
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoader_Sequential(t *testing.T) {
	content := "alpha\nbeta\ngamma\ndelta"
	path := writeTempFile(t, content)

	l := New(Config{ParallelThreshold: 1 << 30})
	if err := l.Start(path, 0); err != nil {
		t.Fatal(err)
	}

	lines, bytes, err := drain(t, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"alpha", "beta", "gamma", "delta"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %v, want %v", len(lines), lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if bytes != int64(len(content)) {
		t.Errorf("bytes = %d, want %d", bytes, len(content))
	}
}

func TestLoader_OpenFailure(t *testing.T) {
	l := New(DefaultConfig())
	if err := l.Start(filepath.Join(t.TempDir(), "missing.txt"), 0); err != nil {
		t.Fatal(err)
	}

	lines, _, err := drain(t, l)
	if err == nil {
		t.Fatal("expected open error on Done signal")
	}
	if len(lines) != 0 {
		t.Errorf("unexpected lines before failure: %v", lines)
	}
}

func TestLoader_Offset(t *testing.T) {
	content := "skipped\nkept one\nkept two\n"
	path := writeTempFile(t, content)

	l := New(Config{ParallelThreshold: 1 << 30})
	if err := l.Start(path, int64(len("skipped\n"))); err != nil {
		t.Fatal(err)
	}

	lines, bytes, err := drain(t, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "kept one" || lines[1] != "kept two" {
		t.Fatalf("got %v", lines)
	}
	if want := int64(len(content) - len("skipped\n")); bytes != want {
		t.Errorf("bytes = %d, want %d", bytes, want)
	}
}

// Both paths must agree on line order and byte totals for the same file.
func TestLoader_ParallelMatchesSequential(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20000; i++ {
		fmt.Fprintf(&sb, "line %d payload %s\n", i, strings.Repeat("y", i%53))
	}
	sb.WriteString("tail without newline")
	content := sb.String()
	path := writeTempFile(t, content)

	seq := New(Config{ParallelThreshold: 1 << 30})
	if err := seq.Start(path, 0); err != nil {
		t.Fatal(err)
	}
	seqLines, seqBytes, err := drain(t, seq)
	if err != nil {
		t.Fatal(err)
	}

	par := New(Config{ParallelThreshold: 1, BatchLines: 1000})
	if err := par.Start(path, 0); err != nil {
		t.Fatal(err)
	}
	parLines, parBytes, err := drain(t, par)
	if err != nil {
		t.Fatal(err)
	}

	if len(parLines) != len(seqLines) {
		t.Fatalf("parallel %d lines, sequential %d", len(parLines), len(seqLines))
	}
	for i := range seqLines {
		if parLines[i] != seqLines[i] {
			t.Fatalf("line %d: parallel %q, sequential %q", i, parLines[i], seqLines[i])
		}
	}
	if parBytes != seqBytes {
		t.Errorf("parallel bytes %d, sequential %d", parBytes, seqBytes)
	}
	if parBytes != int64(len(content)) {
		t.Errorf("bytes = %d, want %d", parBytes, len(content))
	}
}

func TestLoader_CancelEmitsDone(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100000; i++ {
		fmt.Fprintf(&sb, "row %d\n", i)
	}
	path := writeTempFile(t, sb.String())

	l := New(Config{ParallelThreshold: 1 << 30, ChunkSize: 512})
	l.Cancel() // cancelled before the first read
	if err := l.Start(path, 0); err != nil {
		t.Fatal(err)
	}

	lines, _, err := drain(t, l)
	if err != nil {
		t.Fatalf("cancellation is not an error, got %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("cancelled session emitted %d lines", len(lines))
	}
}

// A worker parked in a send on a full queue must still observe Cancel,
// even when the consumer never drains another signal. Abandoning a
// loader mid-stream must not strand its goroutine.
func TestLoader_CancelWhileBlockedInSend(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "row %d\n", i)
	}
	path := writeTempFile(t, sb.String())

	// One line per batch overfills the queue and parks the worker in a
	// send with most of the file still unforwarded.
	l := New(Config{ParallelThreshold: 1, BatchLines: 1})
	if err := l.Start(path, 0); err != nil {
		t.Fatal(err)
	}

	waitUntil := time.Now().Add(5 * time.Second)
	for len(l.signals) < cap(l.signals) {
		if time.Now().After(waitUntil) {
			t.Fatal("queue never filled")
		}
		time.Sleep(time.Millisecond)
	}

	l.Cancel()

	select {
	case <-l.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("worker still running after cancel with a full queue")
	}
}

func TestLoader_PauseStopsReads(t *testing.T) {
	path := writeTempFile(t, "a\nb\nc\n")

	l := New(Config{ParallelThreshold: 1 << 30, PausePoll: time.Millisecond})
	l.Pause(true)
	if err := l.Start(path, 0); err != nil {
		t.Fatal(err)
	}

	// While paused, nothing arrives.
	select {
	case sig := <-l.Signals():
		t.Fatalf("received %v while paused", sig.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	l.Pause(false)
	lines, _, err := drain(t, l)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %v", lines)
	}
}

// Large-file smoke test: the parallel path with a tiny threshold must
// agree with the sequential path on total line count.
func TestLoader_LargeFileLineCount(t *testing.T) {
	total := 2000000
	if testing.Short() {
		total = 200000
	}
	var sb strings.Builder
	for i := 0; i < total; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	path := writeTempFile(t, sb.String())

	par := New(Config{ParallelThreshold: 1000, BatchLines: 50000})
	if err := par.Start(path, 0); err != nil {
		t.Fatal(err)
	}
	parLines, _, err := drain(t, par)
	if err != nil {
		t.Fatal(err)
	}

	seq := New(Config{ParallelThreshold: 1 << 62})
	if err := seq.Start(path, 0); err != nil {
		t.Fatal(err)
	}
	seqLines, _, err := drain(t, seq)
	if err != nil {
		t.Fatal(err)
	}

	if len(parLines) != total || len(seqLines) != total {
		t.Fatalf("parallel %d, sequential %d, want %d", len(parLines), len(seqLines), total)
	}
}
