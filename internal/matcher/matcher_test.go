package matcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/testutil"
)

var testEpoch = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type recordingTracker struct {
	mu     sync.Mutex
	events []survey.Event
}

func (r *recordingTracker) Track(ev survey.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type env struct {
	store   *store.Store
	clock   *testutil.FakeClock
	tracker *recordingTracker
	matcher *Matcher
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	clk := testutil.NewFakeClock(testEpoch)
	s, err := store.Open(filepath.Join(t.TempDir(), "match.db"),
		store.WithClock(clk),
		store.WithIDGenerator(testutil.NewSequenceGenerator("sub")),
		store.WithPollInterval(0),
		store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tr := &recordingTracker{}
	opts = append([]Option{
		WithTracker(tr),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return &env{store: s, clock: clk, tracker: tr, matcher: New(s, opts...)}
}

// insert stores a submission and moves the clock forward a minute so
// every record has a distinct timestamp.
func (e *env) insert(t *testing.T, surveyID, interest, obstacle, businessType string) survey.Submission {
	t.Helper()
	answers := survey.Answers{
		survey.FieldInterest:       survey.Text(interest),
		survey.FieldMarketObstacle: survey.Text(obstacle),
		"biggest_challenge":        survey.Text("private comment"),
	}
	if businessType != "" {
		answers[survey.FieldBusinessType] = survey.Text(businessType)
	}
	sub, err := e.store.InsertSubmission(context.Background(), survey.Submission{
		SurveyID: surveyID,
		Answers:  answers,
	})
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	return sub
}

func (e *env) get(t *testing.T, id string) survey.Submission {
	t.Helper()
	sub, err := e.store.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func ama() Contact {
	return Contact{
		FullName:       "Ama Mensah",
		CompanyName:    "Mensah Farms",
		Email:          "ama@example.com",
		Phone:          "+233 20 000 0000",
		Interest:       "yes",
		MarketObstacle: "connections",
	}
}

func TestMatch_SingleCandidateLinks(t *testing.T) {
	e := newEnv(t)
	target := e.insert(t, "s1", "yes", "connections", "")
	other := e.insert(t, "s2", "no", "connections", "")

	out, err := e.matcher.Match(context.Background(), ama())
	require.NoError(t, err)

	assert.Equal(t, KindLinked, out.Kind)
	assert.Equal(t, 20, out.Score)
	assert.Equal(t, target.ID, out.SubmissionID)
	require.NotNil(t, out.Linked)
	assert.True(t, out.Linked.HasContactInfo)
	assert.NoError(t, out.Err(ama()))

	got := e.get(t, target.ID)
	assert.True(t, got.HasContactInfo)
	assert.Equal(t, "Ama Mensah", got.FullName)
	assert.Equal(t, "Mensah Farms", got.CompanyName)
	assert.Equal(t, "ama@example.com", got.Email)
	assert.Equal(t, target.Answers, got.Answers)

	untouched := e.get(t, other.ID)
	assert.False(t, untouched.HasContactInfo)
	assert.Empty(t, untouched.FullName)

	require.Len(t, e.tracker.events, 1)
	ev := e.tracker.events[0]
	assert.Equal(t, survey.EventContactLinked, ev.Kind)
	assert.Equal(t, "s1", ev.SurveyID)
	assert.Equal(t, target.ID, ev.Payload["submissionId"])
	assert.Equal(t, 20, ev.Payload["score"])
}

func TestMatch_NoCandidates(t *testing.T) {
	e := newEnv(t)
	other := e.insert(t, "s1", "no", "branding", "")

	out, err := e.matcher.Match(context.Background(), ama())
	require.NoError(t, err)
	assert.Equal(t, KindNoMatch, out.Kind)
	assert.Empty(t, out.Candidates)
	assert.Nil(t, out.Linked)

	var nm *NoMatchError
	require.True(t, errors.As(out.Err(ama()), &nm))
	assert.Equal(t, "connections", nm.MarketObstacle)

	assert.False(t, e.get(t, other.ID).HasContactInfo)
	assert.Empty(t, e.tracker.events)
}

func TestMatch_AmbiguousRanksAndHumanPick(t *testing.T) {
	e := newEnv(t)
	older := e.insert(t, "s1", "yes", "connections", "cooperative")
	plain := e.insert(t, "s2", "yes", "connections", "trader")
	newer := e.insert(t, "s3", "yes", "connections", "cooperative")

	c := ama()
	c.BusinessType = "cooperative"

	out, err := e.matcher.Match(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, KindAmbiguous, out.Kind)
	require.Len(t, out.Candidates, 3)

	var ids []string
	var scores []int
	for i, cand := range out.Candidates {
		assert.Equal(t, i+1, cand.Rank)
		ids = append(ids, cand.SubmissionID)
		scores = append(scores, cand.Score)
	}
	assert.Equal(t, []string{newer.ID, older.ID, plain.ID}, ids)
	assert.Equal(t, []int{25, 25, 20}, scores)
	assert.Equal(t, newer.SubmittedAt, out.Candidates[0].SubmittedAt)
	assert.Equal(t, survey.Text("cooperative"), out.Candidates[0].Summary[survey.FieldBusinessType])
	assert.NotContains(t, out.Candidates[0].Summary, "biggest_challenge")

	var am *AmbiguousMatchError
	require.True(t, errors.As(out.Err(c), &am))
	assert.Equal(t, 3, am.Candidates)

	// Nothing is written until a human picks
	for _, id := range ids {
		assert.False(t, e.get(t, id).HasContactInfo)
	}

	picked := out.Candidates[1].SubmissionID
	linked, err := e.matcher.Link(context.Background(), c, picked)
	require.NoError(t, err)
	assert.Equal(t, KindLinked, linked.Kind)
	assert.Equal(t, 25, linked.Score)
	assert.Equal(t, picked, linked.SubmissionID)

	assert.True(t, e.get(t, older.ID).HasContactInfo)
	assert.False(t, e.get(t, newer.ID).HasContactInfo)
	assert.False(t, e.get(t, plain.ID).HasContactInfo)
}

func TestMatch_AmbiguousCapsCandidates(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		e.insert(t, id, "yes", "connections", "")
	}

	out, err := e.matcher.Match(context.Background(), ama())
	require.NoError(t, err)
	assert.Equal(t, KindAmbiguous, out.Kind)
	assert.Len(t, out.Candidates, DefaultMaxCandidates)

	e2 := newEnv(t, WithMaxCandidates(4))
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		e2.insert(t, id, "yes", "connections", "")
	}
	out, err = e2.matcher.Match(context.Background(), ama())
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 4)
}

func TestLink_RefusesNonCandidates(t *testing.T) {
	e := newEnv(t)
	e.insert(t, "s1", "yes", "connections", "")
	e.insert(t, "s2", "yes", "connections", "")
	outside := e.insert(t, "s3", "no", "connections", "")

	_, err := e.matcher.Link(context.Background(), ama(), outside.ID)
	assert.ErrorIs(t, err, ErrNotCandidate)

	_, err = e.matcher.Link(context.Background(), ama(), "missing")
	assert.ErrorIs(t, err, ErrNotCandidate)

	assert.False(t, e.get(t, outside.ID).HasContactInfo)
}

func TestLink_OutsideTopN(t *testing.T) {
	e := newEnv(t)
	first := e.insert(t, "s1", "yes", "connections", "")
	e.insert(t, "s2", "yes", "connections", "")
	e.insert(t, "s3", "yes", "connections", "")
	e.insert(t, "s4", "yes", "connections", "")

	// first is the oldest of four equal scores, ranked fourth
	_, err := e.matcher.Link(context.Background(), ama(), first.ID)
	assert.ErrorIs(t, err, ErrNotCandidate)
	assert.False(t, e.get(t, first.ID).HasContactInfo)
}

func TestMatch_RelinkSameContactIsIdempotent(t *testing.T) {
	e := newEnv(t)
	target := e.insert(t, "s1", "yes", "connections", "")

	_, err := e.matcher.Match(context.Background(), ama())
	require.NoError(t, err)

	again := ama()
	again.FullName = "Ama K. Mensah"
	again.Email = "  AMA@example.com "
	out, err := e.matcher.Match(context.Background(), again)
	require.NoError(t, err)
	assert.Equal(t, KindLinked, out.Kind)

	got := e.get(t, target.ID)
	assert.Equal(t, "Ama K. Mensah", got.FullName)
	assert.Equal(t, "ama@example.com", got.Email)
}

func TestMatch_LinkedToOtherContactConflicts(t *testing.T) {
	e := newEnv(t)
	target := e.insert(t, "s1", "yes", "connections", "")

	_, err := e.matcher.Match(context.Background(), ama())
	require.NoError(t, err)

	intruder := ama()
	intruder.FullName = "Kofi Boateng"
	intruder.Email = "kofi@example.com"
	_, err = e.matcher.Match(context.Background(), intruder)
	require.Error(t, err)
	assert.True(t, IsLinkConflict(err))
	assert.ErrorIs(t, err, store.ErrAlreadyLinked)

	got := e.get(t, target.ID)
	assert.Equal(t, "Ama Mensah", got.FullName)
}

func TestMatch_InvalidContact(t *testing.T) {
	e := newEnv(t)
	e.insert(t, "s1", "yes", "connections", "")

	out, err := e.matcher.Match(context.Background(), Contact{
		FullName:       " ",
		Interest:       "maybe",
		MarketObstacle: "",
	})
	require.NoError(t, err)
	assert.Equal(t, KindInvalid, out.Kind)
	assert.Equal(t, survey.Violations{
		{Field: FieldFullName, Rule: survey.RuleRequired},
		{Field: FieldEmail, Rule: survey.RuleRequired},
		{Field: FieldPhone, Rule: survey.RuleRequired},
		{Field: FieldInterest, Rule: survey.RuleOption},
		{Field: FieldMarketObstacle, Rule: survey.RuleRequired},
	}, out.Violations)

	var ve *survey.ValidationError
	assert.True(t, errors.As(out.Err(Contact{}), &ve))
}

type failingStore struct {
	queryErr error
	linkErr  error
	subs     []survey.Submission
}

func (f *failingStore) QueryEquals(context.Context, map[string]string) ([]survey.Submission, error) {
	return f.subs, f.queryErr
}

func (f *failingStore) LinkIdentity(context.Context, string, survey.Identity) (survey.Submission, error) {
	return survey.Submission{}, f.linkErr
}

func TestMatch_StorageFailuresAreRetryable(t *testing.T) {
	storageErr := &store.StorageError{Op: "query", Err: errors.New("database is locked")}

	m := New(&failingStore{queryErr: storageErr}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := m.Match(context.Background(), ama())
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))

	m = New(&failingStore{
		subs:    []survey.Submission{{ID: "x", Answers: survey.Answers{}}},
		linkErr: storageErr,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err = m.Match(context.Background(), ama())
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))
	assert.False(t, IsLinkConflict(err))
}

func TestScore(t *testing.T) {
	sub := survey.Submission{Answers: survey.Answers{
		survey.FieldInterest:       survey.Text("yes"),
		survey.FieldMarketObstacle: survey.Text("connections"),
		survey.FieldBusinessType:   survey.Text("processor"),
	}}

	tests := []struct {
		name    string
		contact Contact
		want    int
	}{
		{"both discriminators", Contact{Interest: "yes", MarketObstacle: "connections"}, 20},
		{"business type matches", Contact{Interest: "yes", MarketObstacle: "connections", BusinessType: "processor"}, 25},
		{"business type differs", Contact{Interest: "yes", MarketObstacle: "connections", BusinessType: "trader"}, 20},
		{"interest only", Contact{Interest: "yes", MarketObstacle: "branding"}, 10},
		{"nothing", Contact{Interest: "no", MarketObstacle: "branding"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(sub, tt.contact))
		})
	}
}

func TestContact_Normalize(t *testing.T) {
	c := Contact{
		FullName: "  Ama\u0301 ",
		Email:    " Ama@Example.COM",
		Interest: " yes",
	}.Normalize()

	assert.Equal(t, "Am\u00e1", c.FullName)
	assert.Equal(t, "ama@example.com", c.Email)
	assert.Equal(t, "yes", c.Interest)
}

func TestContact_Validate(t *testing.T) {
	base := ama()
	assert.Empty(t, base.Validate())

	phoneOnly := base
	phoneOnly.Email = ""
	assert.Empty(t, phoneOnly.Validate())

	badEmail := base
	badEmail.Email = "not-an-email"
	assert.Equal(t, survey.Violations{{Field: FieldEmail, Rule: survey.RuleFormat}}, badEmail.Validate())
}
