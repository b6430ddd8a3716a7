package wizard

import (
	"slices"

	"github.com/roach88/tally/internal/survey"
)

// Accumulator holds the cumulative answers of one session. Single-value
// fields are last-write-wins; multi-select fields are ordered sets that
// only grow.
type Accumulator struct {
	single map[string]survey.Answer
	sets   map[string]*orderedSet
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		single: make(map[string]survey.Answer),
		sets:   make(map[string]*orderedSet),
	}
}

// Set replaces a single-value answer. A nil answer or empty Text removes it.
func (a *Accumulator) Set(field string, v survey.Answer) {
	if v == nil || v == survey.Text("") {
		delete(a.single, field)
		return
	}
	a.single[field] = v
}

// Add merges values into the field's set, skipping blanks and duplicates.
func (a *Accumulator) Add(field string, values ...string) {
	set, ok := a.sets[field]
	if !ok {
		set = newOrderedSet()
		a.sets[field] = set
	}
	for _, v := range survey.CleanSelection(values) {
		set.add(v)
	}
}

// Raw returns the field's accumulated value as raw input strings, the way
// Session.Set would have received it.
func (a *Accumulator) Raw(field string) ([]string, bool) {
	if set, ok := a.sets[field]; ok {
		return slices.Clone(set.items), true
	}
	switch v := a.single[field].(type) {
	case survey.Text:
		return []string{string(v)}, true
	case survey.Rating:
		return []string{survey.FormatRating(v)}, true
	}
	return nil, false
}

// Answers returns a snapshot of every accumulated answer.
func (a *Accumulator) Answers() survey.Answers {
	out := make(survey.Answers, len(a.single)+len(a.sets))
	for k, v := range a.single {
		out[k] = v
	}
	for k, set := range a.sets {
		out[k] = survey.Selection(slices.Clone(set.items))
	}
	return out
}

type orderedSet struct {
	items []string
	index map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, index: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}
