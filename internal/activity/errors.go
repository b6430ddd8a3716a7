package activity

import (
	"errors"
	"fmt"

	"github.com/roach88/tally/internal/survey"
)

// ErrQueueFull is the cause of a TrackingError for an event refused because
// too many events were already pending.
var ErrQueueFull = errors.New("activity queue full")

// ErrClosed is the cause of a TrackingError for an event tracked after
// Close.
var ErrClosed = errors.New("activity tracker closed")

// TrackingError is an activity event that could not be appended. Tracker
// logs and counts these; they never reach the caller of Track.
type TrackingError struct {
	Kind     survey.EventKind
	SurveyID string
	Err      error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("track %s (survey=%s): %v", e.Kind, e.SurveyID, e.Err)
}

func (e *TrackingError) Unwrap() error {
	return e.Err
}
