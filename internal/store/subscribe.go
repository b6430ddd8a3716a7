package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Subscription delivers snapshots of a live feed until closed.
//
// The channel has capacity one and always holds the newest undelivered
// snapshot; older undelivered snapshots are dropped. The channel is closed
// after Close returns or when the subscribing context ends.
type Subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// C returns the snapshot channel.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close stops the subscription and waits for its goroutine to exit.
// Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Fetcher reads one snapshot of a feed.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Subscribe starts a feed subscription. The first snapshot is read
// synchronously so that an unreachable store fails here rather than
// silently producing nothing. Later snapshots are read whenever signal
// fires or poll elapses (poll <= 0 disables the ticker). Failed re-reads are
// logged and skipped; the previous snapshot stays current.
//
// unlisten, if non-nil, is called once the subscription stops.
func Subscribe[T any](
	ctx context.Context,
	fetch Fetcher[T],
	signal <-chan struct{},
	unlisten func(),
	poll time.Duration,
	logger *slog.Logger,
) (*Subscription[T], error) {
	first, err := fetch(ctx)
	if err != nil {
		if unlisten != nil {
			unlisten()
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		ch:     make(chan T, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.ch <- first

	var tick <-chan time.Time
	var ticker *time.Ticker
	if poll > 0 {
		ticker = time.NewTicker(poll)
		tick = ticker.C
	}

	go func() {
		defer close(sub.done)
		defer close(sub.ch)
		if ticker != nil {
			defer ticker.Stop()
		}
		if unlisten != nil {
			defer unlisten()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			case <-tick:
			}

			snap, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("subscription refresh failed", "error", err)
				continue
			}
			sub.offer(snap)
		}
	}()

	return sub, nil
}

// offer replaces any undelivered snapshot with snap. Only the subscription
// goroutine sends, so after draining the buffer the send cannot block.
func (s *Subscription[T]) offer(snap T) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
