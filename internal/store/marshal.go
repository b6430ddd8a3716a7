package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tally/internal/survey"
)

// timeLayout is fixed-width so that TEXT ordering is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime tolerates any RFC 3339 value; anything else is the zero time,
// which the aggregator treats as a missing timestamp.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// marshalAnswers converts answers to canonical JSON TEXT for storage.
func marshalAnswers(a survey.Answers) (string, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := survey.MarshalCanonical(a)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	return string(data), nil
}

// unmarshalAnswers is lenient: a corrupt document yields empty answers so
// that one bad row cannot break a feed.
func unmarshalAnswers(data string) survey.Answers {
	a, err := survey.ParseAnswers([]byte(data))
	if err != nil {
		return survey.Answers{}
	}
	return a
}

func marshalPayload(p map[string]any) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := survey.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalPayload(data string) map[string]any {
	if data == "" || data == "{}" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var p map[string]any
	if err := dec.Decode(&p); err != nil {
		return nil
	}
	return p
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const submissionColumns = `id, survey_id, answers, submitted_at, completion_time,
	full_name, company_name, email, phone, has_contact_info, linked_at`

func scanSubmission(row scanner) (survey.Submission, error) {
	var (
		sub         survey.Submission
		answers     string
		submittedAt string
		completion  sql.NullInt64
		linkedAt    sql.NullString
	)
	err := row.Scan(
		&sub.ID,
		&sub.SurveyID,
		&answers,
		&submittedAt,
		&completion,
		&sub.FullName,
		&sub.CompanyName,
		&sub.Email,
		&sub.Phone,
		&sub.HasContactInfo,
		&linkedAt,
	)
	if err != nil {
		return survey.Submission{}, err
	}

	sub.Answers = unmarshalAnswers(answers)
	sub.SubmittedAt = parseTime(submittedAt)
	if completion.Valid {
		ms := completion.Int64
		sub.CompletionTime = &ms
	}
	if linkedAt.Valid {
		if t := parseTime(linkedAt.String); !t.IsZero() {
			sub.LinkedAt = &t
		}
	}
	return sub, nil
}

const eventColumns = `id, type, survey_id, step, timestamp, payload`

func scanEvent(row scanner) (survey.Event, error) {
	var (
		ev      survey.Event
		kind    string
		ts      string
		payload string
	)
	if err := row.Scan(&ev.ID, &kind, &ev.SurveyID, &ev.Step, &ts, &payload); err != nil {
		return survey.Event{}, err
	}
	ev.Kind = survey.EventKind(kind)
	ev.Timestamp = parseTime(ts)
	ev.Payload = unmarshalPayload(payload)
	return ev, nil
}
