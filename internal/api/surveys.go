package api

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/tally/internal/wizard"
)

// stepResponse is returned by advance and retreat.
type stepResponse struct {
	wizard.StepResult
	Session wizard.Snapshot `json:"session"`
}

type submitResponse struct {
	SurveyID       string `json:"surveyId"`
	SubmissionID   string `json:"submissionId"`
	CompletionTime *int64 `json:"completionTime,omitempty"`
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sess, err := s.Sessions.Get(chi.URLParam(r, "surveyID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *server) startSurvey(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Start()
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *server) getSurvey(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// setAnswers stages {"field": value} pairs. A value may be a string, a
// number or an array; fields are applied in name order and the first
// rejected field stops the request.
func (s *server) setAnswers(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if !decodeJSON(w, r, &body) {
		return
	}

	for _, field := range slices.Sorted(maps.Keys(body)) {
		raw, err := rawInput(body[field])
		if err != nil {
			writeProblem(w, http.StatusBadRequest, field+": "+err.Error(), nil)
			return
		}
		if err := sess.Set(field, raw...); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *server) advance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Advance()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(res.Violations) > 0 {
		writeProblem(w, http.StatusUnprocessableEntity, "please answer the highlighted questions", res.Violations)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{StepResult: res, Session: sess.Snapshot()})
}

func (s *server) retreat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Retreat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{StepResult: res, Session: sess.Snapshot()})
}

func (s *server) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Submit(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(res.Violations) > 0 {
		writeProblem(w, http.StatusUnprocessableEntity, "please answer the highlighted questions", res.Violations)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		SurveyID:       sess.ID(),
		SubmissionID:   res.Submission.ID,
		CompletionTime: res.Submission.CompletionTime,
	})
}

func (s *server) abandon(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Abandon(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Sessions.Remove(sess.ID())
	writeJSON(w, http.StatusOK, sess.Snapshot())
}
