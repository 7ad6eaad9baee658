package chat

import (
	"sync"

	"github.com/eapache/queue"
)

// OutQueue is the bounded per-session output buffer between the hub and the
// session's writer goroutine. Push never blocks: when the queue is full the
// oldest pending line is evicted (drop-oldest policy) so a stalled reader
// cannot grow memory without bound or delay delivery to anyone else.
type OutQueue struct {
	mu       sync.Mutex
	buf      *queue.Queue
	capacity int
	closed   bool
	dropped  uint64

	// notify carries at most one pending wakeup for the single consumer.
	notify chan struct{}
}

func NewOutQueue(capacity int) *OutQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &OutQueue{
		buf:      queue.New(),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a line for delivery. Returns false if the queue is closed.
// If the queue is at capacity the oldest line is dropped to make room.
func (q *OutQueue) Push(line string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.buf.Length() >= q.capacity {
		q.buf.Remove()
		q.dropped++
		DroppedLines.Inc()
	}
	q.buf.Add(line)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a line is available and returns it in FIFO order.
// After Close, remaining lines are still handed out; once drained Next
// returns ("", false).
func (q *OutQueue) Next() (string, bool) {
	for {
		q.mu.Lock()
		if q.buf.Length() > 0 {
			line := q.buf.Remove().(string)
			q.mu.Unlock()
			return line, true
		}
		if q.closed {
			q.mu.Unlock()
			return "", false
		}
		q.mu.Unlock()
		<-q.notify
	}
}

// Close stops accepting new lines. Pending lines remain readable via Next.
// Safe to call more than once.
func (q *OutQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len reports the number of pending lines.
func (q *OutQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Length()
}

// Dropped reports how many lines were evicted due to a full queue.
func (q *OutQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
