package activity

import (
	"sync"

	"github.com/roach88/tally/internal/survey"
)

// eventQueue is a thread-safe FIFO of pending activity events.
//
// Enqueue never blocks. The queue is bounded by max: when full, the new
// event is refused and the caller records it as a tracking failure.
//
// The signal channel (buffered, size 1) lets the drain loop wait with
// select alongside a context.
type eventQueue struct {
	mu     sync.Mutex
	events []survey.Event
	max    int
	closed bool
	signal chan struct{}
}

func newEventQueue(max int) *eventQueue {
	return &eventQueue{
		events: make([]survey.Event, 0, 64),
		max:    max,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds e to the back of the queue.
// Returns false if the queue is closed or full.
func (q *eventQueue) Enqueue(e survey.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || (q.max > 0 && len(q.events) >= q.max) {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (survey.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return survey.Event{}, false
	}

	e := q.events[0]
	// Clear the slot so the payload map can be collected.
	q.events[0] = survey.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close refuses further events and wakes the drain loop.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
