package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/survey"
)

const waitFor = 2 * time.Second

func receive[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func TestSubscribeSubmissions_InitialAndUpdates(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	insertTestSubmission(t, s, "s-1", "yes", "branding", "")

	sub, err := s.SubscribeSubmissions(ctx, 10)
	require.NoError(t, err)
	defer sub.Close()

	first := receive(t, sub)
	require.Len(t, first, 1)

	insertTestSubmission(t, s, "s-2", "no", "branding", "")

	assert.Eventually(t, func() bool {
		select {
		case snap := <-sub.C():
			return len(snap) == 2
		default:
			return false
		}
	}, waitFor, 10*time.Millisecond)
}

func TestSubscribeSubmissions_RespectsLimit(t *testing.T) {
	s, clk := createTestStore(t)

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		insertTestSubmission(t, s, id, "yes", "branding", "")
		clk.Advance(time.Second)
	}

	sub, err := s.SubscribeSubmissions(context.Background(), 2)
	require.NoError(t, err)
	defer sub.Close()

	snap := receive(t, sub)
	require.Len(t, snap, 2)
	assert.Equal(t, "s-3", snap[0].SurveyID)
}

func TestSubscribeEvents(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	sub, err := s.SubscribeEvents(ctx, 5)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, receive(t, sub))

	_, err = s.AppendEvent(ctx, survey.Event{Kind: survey.EventSurveyStarted, SurveyID: "s-1"})
	require.NoError(t, err)

	snap := receive(t, sub)
	require.Len(t, snap, 1)
	assert.Equal(t, survey.EventSurveyStarted, snap[0].Kind)
}

func TestSubscription_CloseClosesChannel(t *testing.T) {
	s, _ := createTestStore(t)

	sub, err := s.SubscribeEvents(context.Background(), 5)
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	// Drain the initial snapshot if still buffered, then expect closed.
	for range sub.C() {
	}
}

func TestSubscription_ContextCancelStops(t *testing.T) {
	s, _ := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.SubscribeSubmissions(ctx, 5)
	require.NoError(t, err)
	cancel()

	done := make(chan struct{})
	go func() {
		for range sub.C() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("subscription did not stop after context cancel")
	}
}

func TestSubscribe_InitialFetchErrorFails(t *testing.T) {
	unlistened := false
	boom := errors.New("boom")

	_, err := Subscribe(context.Background(),
		func(context.Context) (int, error) { return 0, boom },
		nil, func() { unlistened = true }, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.ErrorIs(t, err, boom)
	assert.True(t, unlistened)
}

func TestSubscribe_CoalescesToNewest(t *testing.T) {
	signal := make(chan struct{})
	n := 0
	fetch := func(context.Context) (int, error) {
		n++
		return n, nil
	}

	sub, err := Subscribe(context.Background(), fetch, signal, nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer sub.Close()

	// Unbuffered signal: each send returns once the goroutine picked it up.
	signal <- struct{}{}
	signal <- struct{}{}
	signal <- struct{}{}

	assert.Eventually(t, func() bool {
		select {
		case v := <-sub.C():
			return v == 4
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
}

func TestSubscribe_PollRefreshes(t *testing.T) {
	n := 0
	fetch := func(context.Context) (int, error) {
		n++
		return n, nil
	}

	sub, err := Subscribe(context.Background(), fetch, nil, nil, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 1, receive(t, sub))
	assert.Greater(t, receive(t, sub), 1)
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	ch, unlisten := n.Listen(TopicEvents)

	n.Notify(TopicEvents)
	n.Notify(TopicEvents) // coalesced
	n.Notify(TopicSubmissions)

	select {
	case <-ch:
	default:
		t.Fatal("expected signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	unlisten()
	unlisten()
	n.Notify(TopicEvents)
	select {
	case <-ch:
		t.Fatal("no signal after unlisten")
	default:
	}
}
