// Package activity appends lifecycle telemetry without ever holding up the
// operation that produced it.
//
// Track enqueues and returns immediately. A single goroutine drains the
// queue into the sink in order. Append failures become TrackingErrors,
// which are logged at Warn, counted in tally_tracking_failures_total and
// otherwise dropped.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/clock"
	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/survey"
)

const (
	defaultAppendTimeout = 5 * time.Second
	defaultMaxPending    = 10000
)

// Sink persists activity events. store.RecordStore satisfies it.
type Sink interface {
	AppendEvent(ctx context.Context, ev survey.Event) (survey.Event, error)
}

// Tracker is an asynchronous fire-and-forget activity sink.
type Tracker struct {
	sink    Sink
	queue   *eventQueue
	clock   clock.Clock
	logger  *slog.Logger
	timeout time.Duration
	onError func(*TrackingError)
	done    chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used to stamp events that carry no timestamp.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger sets the logger for tracking failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithAppendTimeout bounds each sink append.
func WithAppendTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.timeout = d }
}

// WithMaxPending bounds the queue. Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(t *Tracker) { t.queue.max = n }
}

// WithErrorHook observes each tracking failure after it is logged.
func WithErrorHook(fn func(*TrackingError)) Option {
	return func(t *Tracker) { t.onError = fn }
}

// NewTracker starts a tracker draining into sink.
func NewTracker(sink Sink, opts ...Option) *Tracker {
	t := &Tracker{
		sink:    sink,
		queue:   newEventQueue(defaultMaxPending),
		clock:   clock.Real{},
		logger:  slog.Default(),
		timeout: defaultAppendTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.drain()
	return t
}

// Track records ev. It never blocks and never fails the caller.
func (t *Tracker) Track(ev survey.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.clock.Now()
	}
	if !t.queue.Enqueue(ev) {
		cause := ErrQueueFull
		if t.isClosed() {
			cause = ErrClosed
		}
		t.fail(&TrackingError{Kind: ev.Kind, SurveyID: ev.SurveyID, Err: cause})
	}
}

// Pending returns the number of events not yet appended.
func (t *Tracker) Pending() int {
	return t.queue.Len()
}

// Close stops accepting events and waits until the queue is drained or ctx
// ends, whichever comes first.
func (t *Tracker) Close(ctx context.Context) error {
	t.queue.Close()
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) isClosed() bool {
	t.queue.mu.Lock()
	defer t.queue.mu.Unlock()
	return t.queue.closed
}

func (t *Tracker) drain() {
	defer close(t.done)
	for {
		for {
			ev, ok := t.queue.TryDequeue()
			if !ok {
				break
			}
			t.append(ev)
		}
		if _, open := <-t.queue.Wait(); !open {
			// Closed: flush whatever was enqueued before Close.
			for {
				ev, ok := t.queue.TryDequeue()
				if !ok {
					return
				}
				t.append(ev)
			}
		}
	}
}

func (t *Tracker) append(ev survey.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if _, err := t.sink.AppendEvent(ctx, ev); err != nil {
		t.fail(&TrackingError{Kind: ev.Kind, SurveyID: ev.SurveyID, Err: err})
	}
}

func (t *Tracker) fail(err *TrackingError) {
	metrics.TrackingFailures.Inc()
	t.logger.Warn("activity event dropped",
		"kind", err.Kind,
		"survey_id", err.SurveyID,
		"error", err.Err,
	)
	if t.onError != nil {
		t.onError(err)
	}
}
