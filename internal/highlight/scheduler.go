package highlight

// DefaultChunkLines is the background sweep size per request.
const DefaultChunkLines = 5000

// Scheduler decides which token range to request next. Foreground
// viewport requests are issued when the visible range moves somewhere
// the background sweep hasn't covered; the sweep itself keeps exactly
// one request in flight, advancing monotonically until the whole file
// is highlighted.
//
// Precedence rule: completed background coverage always wins. A
// viewport that lies entirely inside swept lines is never re-fetched,
// so a stale foreground fetch can't clobber fresher sweep data.
type Scheduler struct {
	chunk      int
	totalLines int

	// Background sweep cursor.
	nextLine    int
	inFlight    int64 // background request id, 0 when none
	inFlightEnd int   // end of the issued range, for the cursor advance

	// Foreground viewport dedupe.
	viewStart     int
	viewEnd       int
	viewRequested bool
}

// NewScheduler creates a scheduler with the given background chunk
// size (lines per request).
func NewScheduler(chunk int) *Scheduler {
	if chunk <= 0 {
		chunk = DefaultChunkLines
	}
	return &Scheduler{chunk: chunk}
}

// Reset starts a fresh sweep over a file of totalLines, for session
// start and document switches.
func (sc *Scheduler) Reset(totalLines int) {
	sc.totalLines = totalLines
	sc.nextLine = 0
	sc.inFlight = 0
	sc.inFlightEnd = 0
	sc.viewStart = 0
	sc.viewEnd = 0
	sc.viewRequested = false
}

// ExtendTotal grows the sweep target when the file is still loading.
// The sweep is extended, never restarted.
func (sc *Scheduler) ExtendTotal(totalLines int) {
	if totalLines > sc.totalLines {
		sc.totalLines = totalLines
	}
}

// TotalLines returns the current sweep target.
func (sc *Scheduler) TotalLines() int { return sc.totalLines }

// CoveredThrough returns the first line the sweep has not completed.
func (sc *Scheduler) CoveredThrough() int { return sc.nextLine }

// InFlight returns the outstanding background request id, 0 when none.
func (sc *Scheduler) InFlight() int64 { return sc.inFlight }

// Done reports whether the sweep has covered the whole file.
func (sc *Scheduler) Done() bool {
	return sc.nextLine >= sc.totalLines
}

// NextBackground returns the next sweep chunk as a half-open line
// range. ok is false while a request is outstanding or the sweep is
// done: at most one background request is ever in flight.
func (sc *Scheduler) NextBackground() (start, end int, ok bool) {
	if sc.inFlight != 0 || sc.Done() {
		return 0, 0, false
	}
	start = sc.nextLine
	end = start + sc.chunk
	if end > sc.totalLines {
		end = sc.totalLines
	}
	return start, end, true
}

// MarkBackground records the id and requested end of the sweep request
// just issued. The cursor advances to exactly this end on response; the
// file may grow while the request is in flight, and lines past the
// issued range were never requested.
func (sc *Scheduler) MarkBackground(id int64, end int) {
	sc.inFlight = id
	sc.inFlightEnd = end
}

// ViewportNeeded reports whether a visible line range warrants a
// foreground request. Ranges already swept are skipped, as is the
// range requested last (dedupe against redundant round-trips).
func (sc *Scheduler) ViewportNeeded(start, end int) bool {
	if start >= end {
		return false
	}
	if end <= sc.nextLine {
		// Background already covered it; background wins.
		return false
	}
	if sc.viewRequested && start == sc.viewStart && end == sc.viewEnd {
		return false
	}
	return true
}

// MarkViewport records a foreground request for dedupe.
func (sc *Scheduler) MarkViewport(start, end int) {
	sc.viewStart = start
	sc.viewEnd = end
	sc.viewRequested = true
}

// InvalidateViewport clears the dedupe record after an edit so the
// visible range is re-fetched.
func (sc *Scheduler) InvalidateViewport() {
	sc.viewRequested = false
}

// OnResponse consumes a token response. If id is the outstanding sweep
// request the cursor advances to the end of the issued range and the
// next chunk becomes eligible; otherwise the response was a foreground
// fetch and the cursor is untouched. Returns true for sweep responses.
func (sc *Scheduler) OnResponse(id int64) bool {
	if id != 0 && id == sc.inFlight {
		sc.inFlight = 0
		sc.nextLine = sc.inFlightEnd
		sc.inFlightEnd = 0
		return true
	}
	return false
}

// Release abandons the outstanding sweep request without advancing the
// cursor, for requests that failed with an error instead of data. The
// chunk stays uncovered: it is re-offered by NextBackground and remains
// eligible for foreground fetches.
func (sc *Scheduler) Release(id int64) {
	if id != 0 && id == sc.inFlight {
		sc.inFlight = 0
		sc.inFlightEnd = 0
	}
}
