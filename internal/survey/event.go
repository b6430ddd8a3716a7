package survey

import "time"

// EventKind names an activity lifecycle occurrence.
type EventKind string

const (
	EventSurveyStarted   EventKind = "survey_started"
	EventStepCompleted   EventKind = "step_completed"
	EventSurveyCompleted EventKind = "survey_completed"
	EventSurveyAbandoned EventKind = "survey_abandoned"
	EventContactLinked   EventKind = "contact_linked"
)

// EventKinds lists every kind in lifecycle order.
var EventKinds = []EventKind{
	EventSurveyStarted,
	EventStepCompleted,
	EventSurveyCompleted,
	EventSurveyAbandoned,
	EventContactLinked,
}

// Event is an append-only activity record.
type Event struct {
	// ID is assigned by the store; zero before append.
	ID        int64          `json:"id,omitempty"`
	Kind      EventKind      `json:"type"`
	SurveyID  string         `json:"surveyId"`
	Step      int            `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
