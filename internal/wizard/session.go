package wizard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/survey"
)

// State is the lifecycle state of a session.
type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
	StateAbandoned  State = "abandoned"
)

// StepResult reports the outcome of Advance or Retreat.
type StepResult struct {
	// Step is the current step after the call.
	Step int `json:"step"`

	// Moved is false when the cursor did not change.
	Moved bool `json:"moved"`

	// Violations is non-empty when validation blocked the transition.
	Violations survey.Violations `json:"violations,omitempty"`
}

// SubmitResult reports the outcome of Submit.
type SubmitResult struct {
	Submission survey.Submission `json:"-"`
	Violations survey.Violations `json:"violations,omitempty"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	SurveyID     string              `json:"surveyId"`
	Step         int                 `json:"step"`
	TotalSteps   int                 `json:"totalSteps"`
	StepName     string              `json:"stepName"`
	State        State               `json:"state"`
	Answers      survey.Answers      `json:"answers"`
	Staged       map[string][]string `json:"staged,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	SubmissionID string              `json:"submissionId,omitempty"`
}

// Session is one in-progress wizard run. It is safe for concurrent use;
// calls are serialized.
type Session struct {
	mu  sync.Mutex
	cfg config

	def    *survey.Definition
	writer SubmissionWriter

	id         string
	current    int
	state      State
	staged     map[string][]string
	acc        *Accumulator
	startedAt  time.Time
	lastActive time.Time
	submission *survey.Submission
}

// NewSession starts a session at step 0 and emits survey_started.
// def must have at least one step.
func NewSession(def *survey.Definition, writer SubmissionWriter, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSession(def, writer, cfg)
}

func newSession(def *survey.Definition, writer SubmissionWriter, cfg config) *Session {
	now := cfg.clock.Now()
	s := &Session{
		cfg:        cfg,
		def:        def,
		writer:     writer,
		id:         cfg.ids.Generate(),
		state:      StateInProgress,
		staged:     make(map[string][]string),
		acc:        NewAccumulator(),
		startedAt:  now,
		lastActive: now,
	}
	s.track(survey.EventSurveyStarted, 0, nil)
	return s
}

// ID returns the client survey id.
func (s *Session) ID() string {
	return s.id
}

// Current returns the current step index.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive returns the time of the last accepted call.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SurveyID:   s.id,
		Step:       s.current,
		TotalSteps: s.def.NumSteps(),
		StepName:   s.def.Steps[s.current].Name,
		State:      s.state,
		Answers:    s.acc.Answers(),
		StartedAt:  s.startedAt,
	}
	if len(s.staged) > 0 {
		snap.Staged = make(map[string][]string, len(s.staged))
		for k, v := range s.staged {
			snap.Staged[k] = slices.Clone(v)
		}
	}
	if s.submission != nil {
		snap.SubmissionID = s.submission.ID
	}
	return snap
}

// Set stages raw input for a field of the current step, replacing any
// input staged before. Passing no values stages an empty answer, which a
// required field rejects on the next Advance.
func (s *Session) Set(field string, raw ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return err
	}
	if !s.inCurrentStep(field) {
		return fmt.Errorf("set %q: %w", field, ErrUnknownField)
	}

	s.staged[field] = slices.Clone(raw)
	if s.staged[field] == nil {
		s.staged[field] = []string{}
	}
	s.touch()
	return nil
}

// ValidateStep checks every field of step i against its staged input, or
// the accumulated answer when nothing is staged. It returns nil for a valid
// step or an out-of-range index.
func (s *Session) ValidateStep(i int) survey.Violations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateStep(i)
}

func (s *Session) validateStep(i int) survey.Violations {
	step, ok := s.def.Step(i)
	if !ok {
		return nil
	}
	var out survey.Violations
	for _, f := range step.Fields {
		raw := s.input(f.Name)
		if f.Kind == survey.KindMulti {
			raw = s.mergedSelection(f.Name)
		}
		out = append(out, validateField(f, raw)...)
	}
	return out
}

// mergedSelection is the set a multi-select field would hold after its
// staged input is merged, so limits apply to the stored answer.
func (s *Session) mergedSelection(field string) survey.Selection {
	acc, _ := s.acc.Raw(field)
	staged, ok := s.staged[field]
	if !ok {
		return survey.CleanSelection(acc)
	}
	return survey.Union(survey.CleanSelection(acc), survey.CleanSelection(staged))
}

func (s *Session) input(field string) []string {
	if raw, ok := s.staged[field]; ok {
		return raw
	}
	raw, _ := s.acc.Raw(field)
	return raw
}

// Advance validates the current step and, if valid, merges its input and
// moves to the next step, emitting step_completed for the step left.
// On the final step it returns ErrFinalStep without validating.
func (s *Session) Advance() (StepResult, error) {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		cur := s.current
		s.mu.Unlock()
		return StepResult{Step: cur}, err
	}
	if s.current >= s.def.NumSteps()-1 {
		cur := s.current
		s.mu.Unlock()
		return StepResult{Step: cur}, ErrFinalStep
	}

	s.touch()
	if viol := s.validateStep(s.current); len(viol) > 0 {
		step := s.current
		s.mu.Unlock()
		metrics.ValidationFailures.Inc()
		return StepResult{Step: step, Violations: viol}, nil
	}

	s.mergeStep(s.current)
	from := s.current
	s.current++
	to := s.current
	s.track(survey.EventStepCompleted, from, nil)
	s.mu.Unlock()

	metrics.StepTransitions.WithLabelValues(metrics.DirectionAdvance).Inc()
	s.notify(from, to)
	return StepResult{Step: to, Moved: true}, nil
}

// Retreat moves back one step without validating. Merged answers are kept.
// On step 0 it is a no-op.
func (s *Session) Retreat() (StepResult, error) {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		cur := s.current
		s.mu.Unlock()
		return StepResult{Step: cur}, err
	}
	s.touch()
	if s.current == 0 {
		s.mu.Unlock()
		return StepResult{Step: 0}, nil
	}

	from := s.current
	s.current--
	to := s.current
	s.mu.Unlock()

	metrics.StepTransitions.WithLabelValues(metrics.DirectionRetreat).Inc()
	s.notify(from, to)
	return StepResult{Step: to, Moved: true}, nil
}

// Submit validates the final step, writes the submission and marks the
// session submitted. A validation failure is reported in the result like a
// failed Advance. A write failure returns *SubmitError and leaves the
// session on the final step so Submit can be retried; the retry reuses the
// survey id, which the store deduplicates.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return SubmitResult{}, err
	}
	last := s.def.NumSteps() - 1
	if s.current != last {
		return SubmitResult{}, ErrNotFinalStep
	}

	s.touch()
	if viol := s.validateStep(last); len(viol) > 0 {
		metrics.ValidationFailures.Inc()
		return SubmitResult{Violations: viol}, nil
	}
	s.mergeStep(last)

	ms := s.cfg.clock.Since(s.startedAt).Milliseconds()
	stored, err := s.writer.InsertSubmission(ctx, survey.Submission{
		SurveyID:       s.id,
		Answers:        s.acc.Answers(),
		CompletionTime: &ms,
	})
	if err != nil {
		metrics.SubmitFailures.Inc()
		s.cfg.logger.Warn("submission write failed", "survey_id", s.id, "error", err)
		return SubmitResult{}, &SubmitError{SurveyID: s.id, Err: err}
	}

	s.state = StateSubmitted
	s.submission = &stored
	s.track(survey.EventSurveyCompleted, last, map[string]any{
		survey.KeyCompletionTime: ms,
		"submissionId":           stored.ID,
	})
	metrics.SubmissionsTotal.Inc()
	s.cfg.logger.Info("submission stored", "survey_id", s.id, "submission_id", stored.ID, "completion_ms", ms)

	return SubmitResult{Submission: stored}, nil
}

// Abandon ends the session without a submission and emits
// survey_abandoned. Abandoning twice is a no-op.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAbandoned:
		return nil
	case StateSubmitted:
		return ErrSubmitted
	}
	s.state = StateAbandoned
	s.track(survey.EventSurveyAbandoned, s.current, nil)
	return nil
}

// mergeStep folds the staged input of step i into the accumulator: text,
// choice and rating fields are last-write-wins, multi-select fields are a
// set union. Staged input for the step is consumed.
func (s *Session) mergeStep(i int) {
	for _, f := range s.def.Steps[i].Fields {
		raw, ok := s.staged[f.Name]
		if !ok {
			continue
		}
		delete(s.staged, f.Name)

		switch f.Kind {
		case survey.KindMulti:
			s.acc.Add(f.Name, raw...)
		case survey.KindRating:
			if r, ok := survey.ParseRating(firstValue(raw)); ok {
				s.acc.Set(f.Name, r)
			} else {
				s.acc.Set(f.Name, nil)
			}
		default:
			s.acc.Set(f.Name, survey.Text(firstValue(raw)))
		}
	}
}

func (s *Session) inCurrentStep(field string) bool {
	for _, f := range s.def.Steps[s.current].Fields {
		if f.Name == field {
			return true
		}
	}
	return false
}

func (s *Session) checkActive() error {
	switch s.state {
	case StateSubmitted:
		return ErrSubmitted
	case StateAbandoned:
		return ErrAbandoned
	}
	return nil
}

func (s *Session) touch() {
	s.lastActive = s.cfg.clock.Now()
}

func (s *Session) track(kind survey.EventKind, step int, payload map[string]any) {
	if s.cfg.tracker == nil {
		return
	}
	s.cfg.tracker.Track(survey.Event{
		Kind:      kind,
		SurveyID:  s.id,
		Step:      step,
		Timestamp: s.cfg.clock.Now(),
		Payload:   payload,
	})
}

func (s *Session) notify(from, to int) {
	if s.cfg.listener != nil {
		s.cfg.listener(s.id, from, to)
	}
}
