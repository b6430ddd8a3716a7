package api

import (
	"net/http"

	"github.com/roach88/tally/internal/matcher"
)

type linkRequest struct {
	SubmissionID string          `json:"submissionId"`
	Contact      matcher.Contact `json:"contact"`
}

// matchContact answers no_match and ambiguous with 200: they are outcomes
// the respondent acts on, not failures.
func (s *server) matchContact(w http.ResponseWriter, r *http.Request) {
	var c matcher.Contact
	if !decodeJSON(w, r, &c) {
		return
	}
	out, err := s.Matcher.Match(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, out)
}

func (s *server) linkContact(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubmissionID == "" {
		writeProblem(w, http.StatusBadRequest, "submissionId is required", nil)
		return
	}
	out, err := s.Matcher.Link(r.Context(), req.Contact, req.SubmissionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOutcome(w, out)
}

func (s *server) writeOutcome(w http.ResponseWriter, out matcher.Outcome) {
	if out.Kind == matcher.KindInvalid {
		writeProblem(w, http.StatusUnprocessableEntity, "please check your contact details", out.Violations)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
