package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/tally/internal/activity"
	"github.com/roach88/tally/internal/compiler"
	"github.com/roach88/tally/internal/matcher"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/testutil"
	"github.com/roach88/tally/internal/wizard"
)

// Epoch is the fake clock's start time in every scenario.
var Epoch = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

// Harness runs one scenario against its own in-memory store, with a fake
// clock and sequential ids so traces are byte-identical across runs.
type Harness struct {
	store    *store.Store
	clock    *testutil.FakeClock
	tracker  *activity.Tracker
	registry *wizard.Registry
	matcher  *matcher.Matcher

	// sessions maps scenario labels to survey ids.
	sessions map[string]string
}

// Run executes a scenario and returns the result. An error means the
// scenario could not run at all; failed expectations are reported in the
// result.
func Run(scenario *Scenario) (*Result, error) {
	def, err := compiler.LoadDefinition(scenario.Survey, scenario.SurveyName)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := testutil.NewFakeClock(Epoch)

	st, err := store.Open(":memory:",
		store.WithClock(clk),
		store.WithIDGenerator(testutil.NewSequenceGenerator("sub")),
		store.WithPollInterval(0),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	tracker := activity.NewTracker(st, activity.WithClock(clk), activity.WithLogger(logger))

	h := &Harness{
		store:   st,
		clock:   clk,
		tracker: tracker,
		registry: wizard.NewRegistry(def, st,
			wizard.WithClock(clk),
			wizard.WithIDGenerator(testutil.NewSequenceGenerator("survey")),
			wizard.WithTracker(tracker),
			wizard.WithLogger(logger),
		),
		matcher:  matcher.New(st, matcher.WithTracker(tracker), matcher.WithLogger(logger)),
		sessions: make(map[string]string),
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.seed(ctx, scenario.Seed, result); err != nil {
		tracker.Close(ctx)
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	for i, step := range scenario.Flow {
		res, err := h.execute(ctx, step)
		if err != nil {
			tracker.Close(ctx)
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
		ev := result.addTrace(step.Op, step.Session, traceArgs(step), res)
		for _, msg := range checkExpect(step.Expect, res) {
			result.AddError(fmt.Sprintf("flow[%d] %s (seq %d): %s", i, step.Op, ev.Seq, msg))
		}
	}

	// Events are appended asynchronously; drain before reading them.
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tracker.Close(closeCtx); err != nil {
		return nil, fmt.Errorf("drain activity events: %w", err)
	}

	actx := &AssertionContext{Store: st, Now: clk.Now(), Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context, seeds []SeedSubmission, result *Result) error {
	for i, s := range seeds {
		answers, err := toAnswers(s.Answers)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		sub, err := h.store.InsertSubmission(ctx, survey.Submission{SurveyID: s.SurveyID, Answers: answers})
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		result.addTrace("seed", "",
			map[string]any{"survey_id": s.SurveyID},
			map[string]any{"submission_id": sub.ID},
		)
		// Distinct timestamps keep candidate ranking by recency meaningful.
		h.clock.Advance(time.Minute)
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, step FlowStep) (map[string]any, error) {
	switch step.Op {
	case OpStart:
		sess := h.registry.Start()
		h.sessions[step.Session] = sess.ID()
		snap := sess.Snapshot()
		return map[string]any{
			"survey_id":   snap.SurveyID,
			"step":        snap.Step,
			"total_steps": snap.TotalSteps,
		}, nil
	case OpWait:
		d, _ := time.ParseDuration(step.Duration)
		h.clock.Advance(d)
		return map[string]any{"now": h.clock.Now().Format(time.RFC3339)}, nil
	case OpMatch:
		out, err := h.matcher.Match(ctx, contactFrom(step.Contact))
		return outcomeResult(out, err)
	case OpLink:
		out, err := h.matcher.Link(ctx, contactFrom(step.Contact), step.Submission)
		return outcomeResult(out, err)
	}

	sess, err := h.registry.Get(h.sessions[step.Session])
	if err != nil {
		return errorResult(err)
	}

	switch step.Op {
	case OpSet:
		for _, field := range slices.Sorted(maps.Keys(step.Answers)) {
			raw, err := rawValues(step.Answers[field])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", field, err)
			}
			if err := sess.Set(field, raw...); err != nil {
				return errorResult(err)
			}
		}
		return map[string]any{"ok": true}, nil
	case OpAdvance, OpRetreat:
		var res wizard.StepResult
		if step.Op == OpAdvance {
			res, err = sess.Advance()
		} else {
			res, err = sess.Retreat()
		}
		if err != nil {
			return errorResult(err)
		}
		out := map[string]any{"step": res.Step, "moved": res.Moved}
		addViolations(out, res.Violations)
		return out, nil
	case OpSubmit:
		res, err := sess.Submit(ctx)
		if err != nil {
			return errorResult(err)
		}
		if len(res.Violations) > 0 {
			out := map[string]any{}
			addViolations(out, res.Violations)
			return out, nil
		}
		out := map[string]any{"submission_id": res.Submission.ID}
		if ct := res.Submission.CompletionTime; ct != nil {
			out["completion_ms"] = *ct
		}
		return out, nil
	case OpAbandon:
		if err := sess.Abandon(); err != nil {
			return errorResult(err)
		}
		h.registry.Remove(sess.ID())
		return map[string]any{"state": string(sess.State())}, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// errorCodes are the domain errors a scenario may expect. Anything else
// aborts the run.
var errorCodes = []struct {
	err  error
	code string
}{
	{wizard.ErrSessionNotFound, "session_not_found"},
	{wizard.ErrUnknownField, "unknown_field"},
	{wizard.ErrSubmitted, "submitted"},
	{wizard.ErrAbandoned, "abandoned"},
	{wizard.ErrFinalStep, "final_step"},
	{wizard.ErrNotFinalStep, "not_final_step"},
	{matcher.ErrNotCandidate, "not_candidate"},
}

func errorResult(err error) (map[string]any, error) {
	if matcher.IsLinkConflict(err) {
		return map[string]any{"error": "link_conflict"}, nil
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return map[string]any{"error": ec.code}, nil
		}
	}
	return nil, err
}

func outcomeResult(out matcher.Outcome, err error) (map[string]any, error) {
	if err != nil {
		return errorResult(err)
	}
	res := map[string]any{"outcome": string(out.Kind)}
	switch out.Kind {
	case matcher.KindLinked:
		res["submission_id"] = out.SubmissionID
		res["score"] = out.Score
	case matcher.KindAmbiguous:
		ids := make([]any, len(out.Candidates))
		for i, c := range out.Candidates {
			ids[i] = c.SubmissionID
		}
		res["candidates"] = ids
	case matcher.KindInvalid:
		addViolations(res, out.Violations)
	}
	return res, nil
}

func addViolations(out map[string]any, viol survey.Violations) {
	if len(viol) == 0 {
		return
	}
	list := make([]any, len(viol))
	for i, v := range viol {
		list[i] = map[string]any{"field": v.Field, "rule": v.Rule}
	}
	out["violations"] = list
}

func traceArgs(step FlowStep) map[string]any {
	switch step.Op {
	case OpSet:
		return map[string]any{"answers": step.Answers}
	case OpMatch:
		return map[string]any{"contact": step.Contact}
	case OpLink:
		return map[string]any{"contact": step.Contact, "submission": step.Submission}
	case OpWait:
		return map[string]any{"duration": step.Duration}
	}
	return nil
}

func contactFrom(m map[string]string) matcher.Contact {
	return matcher.Contact{
		FullName:       m[matcher.FieldFullName],
		CompanyName:    m[matcher.FieldCompanyName],
		Email:          m[matcher.FieldEmail],
		Phone:          m[matcher.FieldPhone],
		Interest:       m[matcher.FieldInterest],
		MarketObstacle: m[matcher.FieldMarketObstacle],
		BusinessType:   m[matcher.FieldBusinessType],
	}
}

// rawValues turns a YAML answer into raw wizard input.
func rawValues(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case int:
		return []string{strconv.Itoa(val)}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			raw, err := rawValues(item)
			if err != nil {
				return nil, err
			}
			out = append(out, raw...)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported answer value %v (%T)", v, v)
}

// toAnswers converts seeded YAML answers: strings are Text, integers are
// Rating and lists are Selection.
func toAnswers(m map[string]any) (survey.Answers, error) {
	out := make(survey.Answers, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = survey.Text(val)
		case int:
			out[k] = survey.Rating(val)
		case []any:
			raw, err := rawValues(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = survey.CleanSelection(raw)
		default:
			return nil, fmt.Errorf("%s: unsupported answer value %v (%T)", k, v, v)
		}
	}
	return out, nil
}

// checkExpect compares a step result against its expect clause. A domain
// error that was not expected is always reported.
func checkExpect(exp *Expect, res map[string]any) []string {
	var errs []string
	if exp == nil {
		if code, ok := res["error"]; ok {
			errs = append(errs, fmt.Sprintf("unexpected error %v", code))
		}
		return errs
	}

	mismatch := func(key string, want, got any) {
		errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", key, want, got))
	}

	if got := res["error"]; exp.Error != "" || got != nil {
		if got != exp.Error {
			mismatch("error", exp.Error, got)
		}
	}
	if exp.Step != nil && res["step"] != *exp.Step {
		mismatch("step", *exp.Step, res["step"])
	}
	if exp.Moved != nil && res["moved"] != *exp.Moved {
		mismatch("moved", *exp.Moved, res["moved"])
	}
	if exp.Violations != nil {
		if got := violationFields(res); !slices.Equal(got, exp.Violations) {
			mismatch("violations", exp.Violations, got)
		}
	}
	if exp.Outcome != "" && res["outcome"] != exp.Outcome {
		mismatch("outcome", exp.Outcome, res["outcome"])
	}
	if exp.Submission != "" && res["submission_id"] != exp.Submission {
		mismatch("submission", exp.Submission, res["submission_id"])
	}
	if exp.Candidates != nil {
		var got []string
		if list, ok := res["candidates"].([]any); ok {
			for _, id := range list {
				got = append(got, id.(string))
			}
		}
		if !slices.Equal(got, exp.Candidates) {
			mismatch("candidates", exp.Candidates, got)
		}
	}
	return errs
}

func violationFields(res map[string]any) []string {
	list, _ := res["violations"].([]any)
	fields := make([]string, 0, len(list))
	for _, v := range list {
		fields = append(fields, v.(map[string]any)["field"].(string))
	}
	return fields
}
