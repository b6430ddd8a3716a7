package wizard

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/testutil"
)

var testEpoch = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

// testDefinition is a three-step questionnaire exercising every field kind.
func testDefinition() *survey.Definition {
	return &survey.Definition{
		Name: "test",
		Steps: []survey.Step{
			{Name: "intro", Fields: []survey.Field{
				{Name: survey.FieldInterest, Kind: survey.KindChoice, Required: true, Options: survey.InterestCategories},
				{Name: "nickname", Kind: survey.KindText},
			}},
			{Name: "details", Fields: []survey.Field{
				{Name: "tags", Kind: survey.KindMulti, Required: true, Options: []string{"a", "b", "c"}, MaxSelections: 2},
				{Name: "score", Kind: survey.KindRating, Required: true},
			}},
			{Name: "final", Fields: []survey.Field{
				{Name: "comment", Kind: survey.KindText, Required: true},
			}},
		},
	}
}

type fakeWriter struct {
	mu    sync.Mutex
	fail  error
	calls []survey.Submission
	clock *testutil.FakeClock
}

func (w *fakeWriter) InsertSubmission(_ context.Context, sub survey.Submission) (survey.Submission, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, sub)
	if w.fail != nil {
		return survey.Submission{}, w.fail
	}
	sub.ID = "rec-" + sub.SurveyID
	sub.SubmittedAt = w.clock.Now()
	return sub, nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []survey.Event
}

func (r *recordingTracker) Track(ev survey.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTracker) kinds() []survey.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]survey.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordingTracker) last() survey.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	clock   *testutil.FakeClock
	writer  *fakeWriter
	tracker *recordingTracker
}

func newFixture() *fixture {
	clk := testutil.NewFakeClock(testEpoch)
	return &fixture{
		clock:   clk,
		writer:  &fakeWriter{clock: clk},
		tracker: &recordingTracker{},
	}
}

func (f *fixture) options(extra ...Option) []Option {
	opts := []Option{
		WithClock(f.clock),
		WithIDGenerator(testutil.NewSequenceGenerator("survey")),
		WithTracker(f.tracker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return append(opts, extra...)
}

func (f *fixture) session(def *survey.Definition, extra ...Option) *Session {
	return NewSession(def, f.writer, f.options(extra...)...)
}
