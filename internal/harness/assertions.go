package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
)

// readLimit bounds how many records an assertion reads. Scenarios are
// small; the limit only guards against runaway seeds.
const readLimit = 10_000

// AssertionContext provides what assertions read after the flow.
type AssertionContext struct {
	Store store.RecordStore
	Now   time.Time
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventOrder:
		return assertEventOrder(a, actx)
	case AssertEventCount:
		return assertEventCount(a, actx)
	case AssertSubmission:
		return assertSubmission(a, actx)
	case AssertDashboard:
		return assertDashboard(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// events returns the event log oldest first.
func events(actx *AssertionContext) ([]survey.Event, error) {
	evs, err := actx.Store.LatestEvents(actx.Ctx, readLimit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(evs)
	return evs, nil
}

// assertEventOrder checks the whole event log, in order.
func assertEventOrder(a Assertion, actx *AssertionContext) error {
	evs, err := events(actx)
	if err != nil {
		return err
	}
	kinds := make([]string, len(evs))
	for i, ev := range evs {
		kinds[i] = string(ev.Kind)
	}
	if !slices.Equal(kinds, a.Kinds) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: strings.Join(a.Kinds, ", "),
			Actual:   strings.Join(kinds, ", "),
		}
	}
	return nil
}

func assertEventCount(a Assertion, actx *AssertionContext) error {
	evs, err := events(actx)
	if err != nil {
		return err
	}
	count := 0
	for _, ev := range evs {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s event(s)", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// assertSubmission compares the stored document of one submission, as it
// is serialized on the wire, against Expect.
func assertSubmission(a Assertion, actx *AssertionContext) error {
	subs, err := actx.Store.LatestSubmissions(actx.Ctx, readLimit)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(subs, func(s survey.Submission) bool { return s.SurveyID == a.SurveyID })
	if i < 0 {
		return &AssertionError{
			Type:     AssertSubmission,
			Expected: fmt.Sprintf("a submission for survey %s", a.SurveyID),
			Actual:   "none stored",
		}
	}
	doc, err := toDocument(subs[i])
	if err != nil {
		return err
	}
	return matchSubset(AssertSubmission, doc, a.Expect)
}

// assertDashboard computes a snapshot over everything stored and compares
// it against Expect. Keys may be dotted paths, e.g. activity.started.
func assertDashboard(a Assertion, actx *AssertionContext) error {
	subs, err := actx.Store.LatestSubmissions(actx.Ctx, readLimit)
	if err != nil {
		return err
	}
	evs, err := actx.Store.LatestEvents(actx.Ctx, readLimit)
	if err != nil {
		return err
	}
	snap := dashboard.Compute(subs, evs, actx.Now, dashboard.Config{Location: time.UTC})
	doc, err := toDocument(snap)
	if err != nil {
		return err
	}
	return matchSubset(AssertDashboard, doc, a.Expect)
}

func toDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// matchSubset compares values by their printed form so YAML integers match
// JSON numbers.
func matchSubset(typ string, doc, expect map[string]any) error {
	var diffs []string
	for _, key := range sortedKeys(expect) {
		got, ok := lookup(doc, key)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s missing", key))
			continue
		}
		if want := expect[key]; fmt.Sprint(got) != fmt.Sprint(want) {
			diffs = append(diffs, fmt.Sprintf("%s = %v, want %v", key, got, want))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     typ,
			Expected: "matching fields",
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
