package matcher

import (
	"errors"
	"fmt"
)

// ErrNotCandidate is returned by Link when the picked submission is not
// among the candidates presented for the contact.
var ErrNotCandidate = errors.New("submission is not a match candidate")

// LinkConflictError reports a submission already linked to a different
// contact. Nothing was written.
type LinkConflictError struct {
	SubmissionID string
	Err          error
}

func (e *LinkConflictError) Error() string {
	return fmt.Sprintf("submission %s is linked to another contact", e.SubmissionID)
}

func (e *LinkConflictError) Unwrap() error {
	return e.Err
}

// NoMatchError is the error form of a no_match outcome.
type NoMatchError struct {
	Interest       string
	MarketObstacle string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no submission with interest=%s market_obstacle=%s", e.Interest, e.MarketObstacle)
}

// AmbiguousMatchError is the error form of an ambiguous outcome.
type AmbiguousMatchError struct {
	Candidates int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d candidate submissions, pick one", e.Candidates)
}

// IsLinkConflict reports whether err is a LinkConflictError.
// Uses errors.As to handle wrapped errors.
func IsLinkConflict(err error) bool {
	var lc *LinkConflictError
	return errors.As(err, &lc)
}
