package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/testutil"
)

func openStore(t *testing.T, clk *testutil.FakeClock) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "dash.db"),
		store.WithClock(clk),
		store.WithIDGenerator(testutil.NewSequenceGenerator("sub")),
		store.WithPollInterval(0),
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// waitFor reads snapshots until one satisfies ok.
func waitFor(t *testing.T, ch <-chan Snapshot, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-ch:
			require.True(t, open, "listener closed")
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestAggregator_RecomputesOnWrites(t *testing.T) {
	clk := testutil.NewFakeClock(now)
	s := openStore(t, clk)
	ctx := context.Background()

	_, err := s.InsertSubmission(ctx, survey.Submission{
		SurveyID: "s1",
		Answers:  survey.Answers{survey.FieldInterest: survey.Text("yes")},
	})
	require.NoError(t, err)

	agg := NewAggregator(s, Config{}, WithClock(clk), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, ok := agg.Latest()
	assert.False(t, ok)

	ch, cancel := agg.Listen()
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- agg.Run(runCtx) }()

	first := waitFor(t, ch, func(s Snapshot) bool { return s.Total == 1 })
	assert.Equal(t, 1, first.Today)
	assert.Equal(t, 1, first.Interest[0].Count)

	_, err = s.InsertSubmission(ctx, survey.Submission{
		SurveyID: "s2",
		Answers:  survey.Answers{survey.FieldInterest: survey.Text("no")},
	})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, survey.Event{Kind: survey.EventSurveyStarted, SurveyID: "s3"})
	require.NoError(t, err)

	snap := waitFor(t, ch, func(s Snapshot) bool { return s.Total == 2 && s.Activity.Started == 1 })
	assert.Equal(t, 1, snap.Interest[1].Count)

	latest, ok := agg.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest.Total)

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestAggregator_ListenGetsCurrentSnapshot(t *testing.T) {
	agg := NewAggregator(nil, Config{}, WithClock(testutil.NewFakeClock(now)))
	agg.Recompute([]survey.Submission{sub(now, nil)}, nil)

	ch, cancel := agg.Listen()
	snap := <-ch
	assert.Equal(t, 1, snap.Total)

	// Only the newest undelivered snapshot is kept
	agg.Recompute(nil, nil)
	agg.Recompute([]survey.Submission{sub(now, nil), sub(now, nil), sub(now, nil)}, nil)
	snap = <-ch
	assert.Equal(t, 3, snap.Total)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestAggregator_SubscribeFailure(t *testing.T) {
	clk := testutil.NewFakeClock(now)
	s := openStore(t, clk)
	require.NoError(t, s.Close())

	agg := NewAggregator(s, Config{}, WithClock(clk))
	err := agg.Run(context.Background())
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	snap := Compute([]survey.Submission{sub(now, survey.Answers{survey.FieldInterest: survey.Text("yes")})}, nil, now, Config{})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snap))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["total"])
	assert.Equal(t, "0s", decoded["avgCompletion"])
	assert.Len(t, decoded["dailyTrend"], 7)
}

func TestWriteText(t *testing.T) {
	snap := Compute([]survey.Submission{sub(now, survey.Answers{survey.FieldInterest: survey.Text("yes")})}, nil, now, Config{})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, snap))
	out := buf.String()

	assert.Contains(t, out, "Submissions")
	assert.Contains(t, out, "2026-04-10")
	assert.Contains(t, out, "rating_market_access")
	assert.Contains(t, out, "completion rate")
}
