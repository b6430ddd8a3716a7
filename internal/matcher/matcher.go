package matcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
)

// Score weights.
const (
	WeightInterest       = 10
	WeightMarketObstacle = 10
	WeightBusinessType   = 5
)

// DefaultMaxCandidates is how many ranked candidates an ambiguous outcome
// presents.
const DefaultMaxCandidates = 3

// Kind classifies a match outcome.
type Kind string

const (
	KindNoMatch   Kind = "no_match"
	KindLinked    Kind = "linked"
	KindAmbiguous Kind = "ambiguous"
	KindInvalid   Kind = "invalid"
)

// Candidate is a ranked submission offered for disambiguation.
type Candidate struct {
	Rank         int            `json:"rank"`
	SubmissionID string         `json:"submissionId"`
	Score        int            `json:"score"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	Summary      survey.Answers `json:"summary"`
}

// SummaryFields are the answers shown with a candidate. Free text is left
// out so other respondents' comments are not exposed.
var SummaryFields = []string{
	survey.FieldBusinessType,
	"business_size",
	"products",
	"sales_channels",
}

func summarize(a survey.Answers) survey.Answers {
	out := make(survey.Answers, len(SummaryFields))
	for _, name := range SummaryFields {
		if v, ok := a[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Outcome is the result of Match or Link. Cardinality outcomes are values,
// not errors.
type Outcome struct {
	Kind Kind `json:"outcome"`

	// Linked is set for KindLinked.
	Linked       *survey.Submission `json:"-"`
	SubmissionID string             `json:"submissionId,omitempty"`

	// Score of the linked submission.
	Score int `json:"score,omitempty"`

	// Candidates is set for KindAmbiguous, best first.
	Candidates []Candidate `json:"candidates,omitempty"`

	// Violations is set for KindInvalid.
	Violations survey.Violations `json:"violations,omitempty"`
}

// Err returns the error form of a non-linked outcome, or nil.
func (o Outcome) Err(c Contact) error {
	switch o.Kind {
	case KindNoMatch:
		return &NoMatchError{Interest: c.Interest, MarketObstacle: c.MarketObstacle}
	case KindAmbiguous:
		return &AmbiguousMatchError{Candidates: len(o.Candidates)}
	case KindInvalid:
		return o.Violations.Err()
	}
	return nil
}

// Store is the part of the record store the matcher needs.
type Store interface {
	QueryEquals(ctx context.Context, fields map[string]string) ([]survey.Submission, error)
	LinkIdentity(ctx context.Context, id string, identity survey.Identity) (survey.Submission, error)
}

// EventTracker receives contact_linked events.
type EventTracker interface {
	Track(ev survey.Event)
}

// Matcher reconciles contact payloads with stored submissions.
type Matcher struct {
	store         Store
	tracker       EventTracker
	logger        *slog.Logger
	maxCandidates int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTracker sets the activity event tracker.
func WithTracker(t EventTracker) Option {
	return func(m *Matcher) { m.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// WithMaxCandidates sets how many candidates an ambiguous outcome lists.
// Values below 2 are ignored.
func WithMaxCandidates(n int) Option {
	return func(m *Matcher) {
		if n >= 2 {
			m.maxCandidates = n
		}
	}
}

// New creates a Matcher over s.
func New(s Store, opts ...Option) *Matcher {
	m := &Matcher{
		store:         s,
		logger:        slog.Default(),
		maxCandidates: DefaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score rates sub against c:
//
//	10·[interest matches] + 10·[market obstacle matches] + 5·[business type given and matches]
func Score(sub survey.Submission, c Contact) int {
	score := 0
	if v, _ := sub.Answers.Text(survey.FieldInterest); v == c.Interest {
		score += WeightInterest
	}
	if v, _ := sub.Answers.Text(survey.FieldMarketObstacle); v == c.MarketObstacle {
		score += WeightMarketObstacle
	}
	if c.BusinessType != "" {
		if v, _ := sub.Answers.Text(survey.FieldBusinessType); v == c.BusinessType {
			score += WeightBusinessType
		}
	}
	return score
}

// Rank scores subs against c and sorts them best first: score descending,
// then newest submission, then id.
func Rank(subs []survey.Submission, c Contact) []Candidate {
	out := make([]Candidate, 0, len(subs))
	for _, sub := range subs {
		out = append(out, Candidate{
			SubmissionID: sub.ID,
			Score:        Score(sub, c),
			SubmittedAt:  sub.SubmittedAt,
			Summary:      summarize(sub.Answers),
		})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		if n := cmp.Compare(b.Score, a.Score); n != 0 {
			return n
		}
		if n := b.SubmittedAt.Compare(a.SubmittedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.SubmissionID, b.SubmissionID)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Match finds the submission c belongs to. One candidate is linked
// immediately; zero or several leave the store unchanged. Store failures
// are returned as errors and are retryable.
func (m *Matcher) Match(ctx context.Context, c Contact) (Outcome, error) {
	c = c.Normalize()
	if viol := c.Validate(); len(viol) > 0 {
		return m.record(Outcome{Kind: KindInvalid, Violations: viol}), nil
	}

	ranked, err := m.candidates(ctx, c)
	if err != nil {
		return Outcome{}, err
	}

	switch len(ranked) {
	case 0:
		m.logger.Info("contact matched no submission",
			"interest", c.Interest, "market_obstacle", c.MarketObstacle)
		return m.record(Outcome{Kind: KindNoMatch}), nil
	case 1:
		return m.link(ctx, c, ranked[0])
	}

	top := ranked[:min(len(ranked), m.maxCandidates)]
	m.logger.Info("contact matched several submissions",
		"candidates", len(ranked), "presented", len(top))
	return m.record(Outcome{Kind: KindAmbiguous, Candidates: top}), nil
}

// Link links c to the submission a human picked from an ambiguous
// outcome. The candidate query is re-run and submissionID must be among
// the presented top candidates, else ErrNotCandidate.
func (m *Matcher) Link(ctx context.Context, c Contact, submissionID string) (Outcome, error) {
	c = c.Normalize()
	if viol := c.Validate(); len(viol) > 0 {
		return m.record(Outcome{Kind: KindInvalid, Violations: viol}), nil
	}

	ranked, err := m.candidates(ctx, c)
	if err != nil {
		return Outcome{}, err
	}
	top := ranked[:min(len(ranked), m.maxCandidates)]
	i := slices.IndexFunc(top, func(cand Candidate) bool { return cand.SubmissionID == submissionID })
	if i < 0 {
		return Outcome{}, fmt.Errorf("link %s: %w", submissionID, ErrNotCandidate)
	}
	return m.link(ctx, c, top[i])
}

func (m *Matcher) candidates(ctx context.Context, c Contact) ([]Candidate, error) {
	subs, err := m.store.QueryEquals(ctx, c.discriminators())
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	return Rank(subs, c), nil
}

func (m *Matcher) link(ctx context.Context, c Contact, cand Candidate) (Outcome, error) {
	linked, err := m.store.LinkIdentity(ctx, cand.SubmissionID, c.Identity())
	if err != nil {
		if errors.Is(err, store.ErrAlreadyLinked) {
			m.logger.Warn("submission linked to another contact", "submission_id", cand.SubmissionID)
			return Outcome{}, &LinkConflictError{SubmissionID: cand.SubmissionID, Err: err}
		}
		return Outcome{}, fmt.Errorf("link %s: %w", cand.SubmissionID, err)
	}

	if m.tracker != nil {
		m.tracker.Track(survey.Event{
			Kind:     survey.EventContactLinked,
			SurveyID: linked.SurveyID,
			Step:     0,
			Payload: map[string]any{
				"submissionId": linked.ID,
				"score":        cand.Score,
			},
		})
	}
	m.logger.Info("contact linked", "submission_id", linked.ID, "score", cand.Score)
	return m.record(Outcome{Kind: KindLinked, Linked: &linked, SubmissionID: linked.ID, Score: cand.Score}), nil
}

func (m *Matcher) record(o Outcome) Outcome {
	metrics.MatchOutcomes.WithLabelValues(string(o.Kind)).Inc()
	return o
}
