package loader

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// SignalKind distinguishes the two loader signal variants.
type SignalKind int

const (
	// SignalLines carries a batch of complete lines.
	SignalLines SignalKind = iota
	// SignalDone terminates a load session. Sent exactly once.
	SignalDone
)

// LineBatch is an ordered run of complete lines handed to the consumer.
// Bytes is zero for all but one batch per session, which carries the
// cumulative byte count, so progress can be tracked without double
// counting.
type LineBatch struct {
	Lines []string
	Bytes int64
}

// Signal is one element of a load session's output stream.
// Err is only meaningful on SignalDone and reports an open or read
// failure; a cancelled session reports no error.
type Signal struct {
	Kind  SignalKind
	Batch LineBatch
	Err   error
}

// Config holds the loader tunables.
type Config struct {
	// ChunkSize is the read size for the sequential path.
	ChunkSize int
	// ParallelThreshold is the remaining-byte size at which the
	// parallel path is taken instead of chunked reads.
	ParallelThreshold int64
	// MaxWorkers caps the parser pool for one parallel batch.
	MaxWorkers int
	// BatchLines is the re-chunk size for parallel results.
	BatchLines int
	// PausePoll is how often a paused loader re-checks its flags.
	PausePoll time.Duration
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         64 * 1024,
		ParallelThreshold: 1 << 20,
		MaxWorkers:        4,
		BatchLines:        50000,
		PausePoll:         5 * time.Millisecond,
	}
}

// Loader streams a file into line batches on a background goroutine.
// One Loader runs one load session; create a new Loader per file open.
// Pause and Cancel are safe from any goroutine. The cancel flag is
// polled before every read and every send, and Cancel also closes a
// quit channel so a worker parked in a send on a full queue unblocks
// even when the consumer has stopped draining.
type Loader struct {
	cfg     Config
	signals chan Signal
	quit    chan struct{}
	exited  chan struct{}

	paused    atomic.Bool
	cancelled atomic.Bool
	started   atomic.Bool
}

// New creates a loader with the given config. Zero fields fall back to
// the defaults.
func New(cfg Config) *Loader {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = def.ParallelThreshold
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.BatchLines <= 0 {
		cfg.BatchLines = def.BatchLines
	}
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = def.PausePoll
	}
	return &Loader{
		cfg:     cfg,
		signals: make(chan Signal, 64),
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

// Signals returns the session's output stream. Consumers must use
// TryNext or a select with default; the main loop never blocks here.
func (l *Loader) Signals() <-chan Signal {
	return l.signals
}

// TryNext performs a non-blocking receive on the signal stream.
func (l *Loader) TryNext() (Signal, bool) {
	select {
	case s := <-l.signals:
		return s, true
	default:
		return Signal{}, false
	}
}

// Pause suspends or resumes reading. While paused the loader buffers
// nothing; it simply stops issuing reads.
func (l *Loader) Pause(p bool) {
	l.paused.Store(p)
}

// Cancel requests cooperative cancellation. A session whose consumer is
// still draining ends with a Done signal; an abandoned worker releases
// its thread and buffers without one.
func (l *Loader) Cancel() {
	if !l.cancelled.Swap(true) {
		close(l.quit)
	}
}

// Cancelled reports whether cancellation has been requested.
func (l *Loader) Cancelled() bool {
	return l.cancelled.Load()
}

// Start begins loading path from the given byte offset on a background
// goroutine. It may be called at most once per Loader.
func (l *Loader) Start(path string, offset int64) error {
	if l.started.Swap(true) {
		return fmt.Errorf("loader already started")
	}
	go l.run(path, offset)
	return nil
}

// run is the session body. It owns the file handle and is the only
// sender on the signal channel.
func (l *Loader) run(path string, offset int64) {
	defer close(l.exited)

	f, err := os.Open(path)
	if err != nil {
		l.finish(fmt.Errorf("open %s: %w", path, err))
		return
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			l.finish(fmt.Errorf("seek %s: %w", path, err))
			return
		}
	}

	remaining := int64(-1)
	if info, err := f.Stat(); err == nil {
		remaining = info.Size() - offset
	}

	if remaining >= l.cfg.ParallelThreshold {
		l.runParallel(f, remaining)
		return
	}
	l.runSequential(f)
}

// runSequential reads fixed-size chunks and parses them with a carry.
func (l *Loader) runSequential(f *os.File) {
	buf := make([]byte, l.cfg.ChunkSize)
	var carry []byte
	var total int64

	for {
		if !l.waitWhilePaused() {
			l.finish(nil)
			return
		}

		n, err := f.Read(buf)
		if n > 0 {
			total += int64(n)
			lines := SplitLines(buf[:n], &carry)
			if len(lines) > 0 && !l.send(LineBatch{Lines: lines}) {
				l.finish(nil)
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			l.finish(fmt.Errorf("read: %w", err))
			return
		}
	}

	// The final batch carries the session byte count and any dangling
	// fragment as its last line.
	final := LineBatch{Bytes: total}
	if len(carry) > 0 {
		final.Lines = []string{string(trimCR(carry))}
	}
	if !l.send(final) {
		l.finish(nil)
		return
	}
	l.finish(nil)
}

// runParallel reads the whole remainder, partitions it into line-aligned
// sections, parses the sections concurrently, and forwards the results
// in file order.
func (l *Loader) runParallel(f *os.File, remaining int64) {
	buf := make([]byte, 0, remaining)
	tmp := make([]byte, l.cfg.ChunkSize)
	for {
		if l.cancelled.Load() {
			l.finish(nil)
			return
		}
		n, err := f.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			l.finish(fmt.Errorf("read: %w", err))
			return
		}
	}

	workers := min(runtime.NumCPU(), l.cfg.MaxWorkers)
	bounds := sectionBoundaries(buf, workers)

	// Each worker parses one read-only section; carries stay local
	// because interior boundaries never split a line. Results are
	// collected per section, then flattened in order.
	sections := make([][]string, len(bounds)-1)
	carries := make([][]byte, len(bounds)-1)
	var wg sync.WaitGroup
	for i := 0; i < len(bounds)-1; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var carry []byte
			sections[i] = SplitLines(buf[bounds[i]:bounds[i+1]], &carry)
			carries[i] = carry
		}(i)
	}
	wg.Wait()

	if l.cancelled.Load() {
		l.finish(nil)
		return
	}

	// Only the last section can end without a terminator.
	var tail []string
	for i, carry := range carries {
		if len(carry) > 0 && i == len(carries)-1 {
			tail = append(tail, string(trimCR(carry)))
		}
	}

	total := int64(len(buf))
	batch := make([]string, 0, l.cfg.BatchLines)
	flush := func(last bool) bool {
		if len(batch) == 0 && !last {
			return true
		}
		b := LineBatch{Lines: batch}
		if last {
			b.Bytes = total
		}
		if !l.send(b) {
			return false
		}
		batch = make([]string, 0, l.cfg.BatchLines)
		return true
	}

	for _, lines := range sections {
		for _, line := range lines {
			batch = append(batch, line)
			if len(batch) >= l.cfg.BatchLines {
				if !flush(false) {
					l.finish(nil)
					return
				}
			}
		}
	}
	batch = append(batch, tail...)
	if !flush(true) {
		l.finish(nil)
		return
	}
	l.finish(nil)
}

// waitWhilePaused blocks the worker while the pause flag is set.
// Returns false if the session was cancelled meanwhile.
func (l *Loader) waitWhilePaused() bool {
	for l.paused.Load() {
		if l.cancelled.Load() {
			return false
		}
		time.Sleep(l.cfg.PausePoll)
	}
	return !l.cancelled.Load()
}

// send forwards a Lines signal unless the session has been cancelled.
// The quit channel unblocks a send parked on a full queue.
func (l *Loader) send(b LineBatch) bool {
	if l.cancelled.Load() {
		return false
	}
	select {
	case l.signals <- Signal{Kind: SignalLines, Batch: b}:
		return true
	case <-l.quit:
		return false
	}
}

// finish emits the session's single Done signal. A cancelled worker
// never blocks here: if the queue is full and nobody is draining, the
// Done is dropped along with the rest of the session.
func (l *Loader) finish(err error) {
	done := Signal{Kind: SignalDone, Err: err}
	select {
	case l.signals <- done:
		return
	case <-l.quit:
	}
	select {
	case l.signals <- done:
	default:
	}
}
