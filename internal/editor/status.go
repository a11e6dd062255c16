package editor

// StatusQueue is a bounded FIFO of status-line messages. When full,
// the oldest message is dropped; a stale notice is worth less than a
// fresh one.
type StatusQueue struct {
	msgs  []string
	depth int
}

// NewStatusQueue creates a queue holding at most depth messages.
func NewStatusQueue(depth int) *StatusQueue {
	if depth <= 0 {
		depth = 32
	}
	return &StatusQueue{depth: depth}
}

// Push appends a message, evicting the oldest when at capacity.
func (q *StatusQueue) Push(msg string) {
	if msg == "" {
		return
	}
	if len(q.msgs) >= q.depth {
		q.msgs = q.msgs[1:]
	}
	q.msgs = append(q.msgs, msg)
}

// Pop removes and returns the oldest message.
func (q *StatusQueue) Pop() (string, bool) {
	if len(q.msgs) == 0 {
		return "", false
	}
	msg := q.msgs[0]
	q.msgs = q.msgs[1:]
	return msg, true
}

// Len returns the number of queued messages.
func (q *StatusQueue) Len() int { return len(q.msgs) }
