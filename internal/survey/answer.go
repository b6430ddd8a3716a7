package survey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Answer is the value recorded for one field.
// Implemented by Text, Rating and Selection.
type Answer interface {
	isAnswer()
}

// Text is a free-text answer or the selected option of a single choice.
type Text string

// Rating is an integer answer in [MinRating, MaxRating].
type Rating int

// Selection is the set of checked options of a multi-select group.
type Selection []string

func (Text) isAnswer()      {}
func (Rating) isAnswer()    {}
func (Selection) isAnswer() {}

// MarshalJSON encodes an empty selection as [] rather than null.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Normalize trims surrounding whitespace and applies Unicode NFC so that
// visually identical input compares equal.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// CleanSelection normalizes raw multi-select input, dropping blank and
// duplicate entries while keeping first-seen order.
//
//	CleanSelection([]string{"a", "a", "", "b"}) == Selection{"a", "b"}
func CleanSelection(raw []string) Selection {
	out := make(Selection, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		v := Normalize(r)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Union merges b into a as a set. The result keeps a's order followed by
// b's new entries.
func Union(a, b Selection) Selection {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return CleanSelection(merged)
}

// ParseRating parses raw rating input. It reports false unless s is an
// integer in [MinRating, MaxRating].
func ParseRating(s string) (Rating, bool) {
	n, err := strconv.Atoi(Normalize(s))
	if err != nil || n < MinRating || n > MaxRating {
		return 0, false
	}
	return Rating(n), true
}

// FormatRating renders r as raw input.
func FormatRating(r Rating) string {
	return strconv.Itoa(int(r))
}

// Answers maps field name to answer value.
type Answers map[string]Answer

// Text returns the text value of field, if it holds one.
func (a Answers) Text(field string) (string, bool) {
	v, ok := a[field].(Text)
	return string(v), ok
}

// Rating returns the rating value of field, if it holds one.
func (a Answers) Rating(field string) (int, bool) {
	v, ok := a[field].(Rating)
	return int(v), ok
}

// Selection returns the selection of field, if it holds one.
func (a Answers) Selection(field string) (Selection, bool) {
	v, ok := a[field].(Selection)
	return v, ok
}

// Keys returns field names in sorted order.
func (a Answers) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// ParseAnswers decodes a JSON object into Answers.
//
// Strings become Text, integers become Rating and string arrays become
// Selection. Values of any other shape are skipped rather than rejected so
// that a malformed record still yields its readable answers.
func ParseAnswers(data []byte) (Answers, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}

	out := make(Answers, len(raw))
	for k, v := range raw {
		if ans, ok := answerFromJSON(v); ok {
			out[k] = ans
		}
	}
	return out, nil
}

// AnswersFromDocument extracts answer values from a decoded document,
// ignoring the reserved metadata keys.
func AnswersFromDocument(doc map[string]any) Answers {
	out := make(Answers, len(doc))
	for k, v := range doc {
		if IsReserved(k) {
			continue
		}
		if ans, ok := answerFromJSON(v); ok {
			out[k] = ans
		}
	}
	return out
}

func answerFromJSON(v any) (Answer, bool) {
	switch val := v.(type) {
	case string:
		return Text(val), true
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, false
		}
		return Rating(n), true
	case float64:
		if val != float64(int64(val)) {
			return nil, false
		}
		return Rating(int64(val)), true
	case []any:
		sel := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			sel = append(sel, s)
		}
		return CleanSelection(sel), true
	}
	return nil, false
}
