package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tally/internal/clock"
	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
)

// Default feed windows.
const (
	DefaultSubmissionWindow = 500
	DefaultEventWindow      = 1000
)

// Source provides the two live feeds. store.RecordStore satisfies it.
type Source interface {
	SubscribeSubmissions(ctx context.Context, limit int) (*store.Subscription[[]survey.Submission], error)
	SubscribeEvents(ctx context.Context, limit int) (*store.Subscription[[]survey.Event], error)
}

// Aggregator owns the dashboard state of one server. It recomputes the
// snapshot from scratch whenever either feed delivers; the newest feed
// values always win.
type Aggregator struct {
	source           Source
	cfg              Config
	clock            clock.Clock
	logger           *slog.Logger
	submissionWindow int
	eventWindow      int

	mu        sync.RWMutex
	latest    Snapshot
	ready     bool
	listeners map[int]chan Snapshot
	nextID    int
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock sets the clock used for "today" and the trend.
func WithClock(c clock.Clock) AggregatorOption {
	return func(a *Aggregator) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithWindows sets how many of the newest submissions and events are
// aggregated. Non-positive values keep the defaults.
func WithWindows(submissions, events int) AggregatorOption {
	return func(a *Aggregator) {
		if submissions > 0 {
			a.submissionWindow = submissions
		}
		if events > 0 {
			a.eventWindow = events
		}
	}
}

// NewAggregator creates an aggregator over src.
func NewAggregator(src Source, cfg Config, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		source:           src,
		cfg:              cfg,
		clock:            clock.Real{},
		logger:           slog.Default(),
		submissionWindow: DefaultSubmissionWindow,
		eventWindow:      DefaultEventWindow,
		listeners:        make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run subscribes to both feeds and recomputes until ctx is cancelled or a
// feed closes. It returns an error only when subscribing fails.
func (a *Aggregator) Run(ctx context.Context) error {
	subsFeed, err := a.source.SubscribeSubmissions(ctx, a.submissionWindow)
	if err != nil {
		return fmt.Errorf("subscribe submissions: %w", err)
	}
	defer subsFeed.Close()

	eventsFeed, err := a.source.SubscribeEvents(ctx, a.eventWindow)
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	defer eventsFeed.Close()

	var subs []survey.Submission
	var events []survey.Event
	haveSubs, haveEvents := false, false

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-subsFeed.C():
			if !ok {
				return nil
			}
			subs, haveSubs = s, true
		case e, ok := <-eventsFeed.C():
			if !ok {
				return nil
			}
			events, haveEvents = e, true
		}

		// Both feeds deliver their first snapshot immediately; wait for
		// both before publishing.
		if haveSubs && haveEvents {
			a.Recompute(subs, events)
		}
	}
}

// Recompute replaces the latest snapshot with one computed from subs and
// events and delivers it to every listener.
func (a *Aggregator) Recompute(subs []survey.Submission, events []survey.Event) Snapshot {
	start := time.Now()
	snap := Compute(subs, events, a.clock.Now(), a.cfg)
	metrics.DashboardRecompute.Observe(time.Since(start).Seconds())

	a.mu.Lock()
	a.latest = snap
	a.ready = true
	for _, ch := range a.listeners {
		offer(ch, snap)
	}
	a.mu.Unlock()

	a.logger.Debug("dashboard recomputed", "total", snap.Total, "events", len(events))
	return snap
}

// Latest returns the most recent snapshot. ok is false until the first
// recompute.
func (a *Aggregator) Latest() (snap Snapshot, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.ready
}

// Listen returns a channel that receives every new snapshot, starting with
// the current one if there is one. Slow listeners only see the newest
// snapshot. Call cancel to stop listening; the channel is then closed.
func (a *Aggregator) Listen() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = ch
	if a.ready {
		ch <- a.latest
	}
	a.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			close(ch)
			a.mu.Unlock()
		})
	}
}

// offer replaces any undelivered snapshot. Callers hold a.mu, so there is
// a single sender per channel.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
