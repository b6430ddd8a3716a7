package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmitted is returned by any transition on a submitted session.
	ErrSubmitted = errors.New("session already submitted")

	// ErrAbandoned is returned by any transition on an abandoned session.
	ErrAbandoned = errors.New("session abandoned")

	// ErrFinalStep is returned by Advance on the last step; use Submit.
	ErrFinalStep = errors.New("already on final step")

	// ErrNotFinalStep is returned by Submit before the last step.
	ErrNotFinalStep = errors.New("submit is only allowed on the final step")

	// ErrUnknownField is returned by Set for a field outside the current step.
	ErrUnknownField = errors.New("field is not part of the current step")

	// ErrSessionNotFound is returned by Registry lookups.
	ErrSessionNotFound = errors.New("session not found")
)

// SubmitError is a failed submission write. The session did not transition
// and Submit may be called again.
type SubmitError struct {
	SurveyID string
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.SurveyID, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Retryable always reports true.
func (e *SubmitError) Retryable() bool {
	return true
}

// IsRetryable reports whether err is a SubmitError.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}
