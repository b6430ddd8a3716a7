package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/matcher"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/wizard"
)

const maxBodyBytes = 64 << 10

// Problem is an RFC 9457 problem details body.
type Problem struct {
	Title      string            `json:"title"`
	Status     int               `json:"status"`
	Detail     string            `json:"detail,omitempty"`
	Violations survey.Violations `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string, viol survey.Violations) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:      http.StatusText(status),
		Status:     status,
		Detail:     detail,
		Violations: viol,
	})
}

// writeError maps a domain error to a status code. Storage failures that
// can be retried become 503 with a generic retry prompt.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		writeProblem(w, http.StatusNotFound, "survey session not found", nil)
	case errors.Is(err, wizard.ErrSubmitted),
		errors.Is(err, wizard.ErrAbandoned),
		errors.Is(err, wizard.ErrFinalStep),
		errors.Is(err, wizard.ErrNotFinalStep):
		writeProblem(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, wizard.ErrUnknownField):
		writeProblem(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, matcher.ErrNotCandidate):
		writeProblem(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case matcher.IsLinkConflict(err):
		writeProblem(w, http.StatusConflict, "that submission is already linked to someone else", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeProblem(w, http.StatusUnauthorized, "invalid username or password", nil)
	case wizard.IsRetryable(err), store.IsRetryable(err):
		s.Logger.Warn("request failed, retryable", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusServiceUnavailable, "temporary storage problem, please try again", nil)
	default:
		s.Logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err), nil)
		return false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "invalid JSON body: trailing data", nil)
		return false
	}
	return true
}

// rawInput decodes one answer value: a string, a number, or an array of
// either.
func rawInput(msg json.RawMessage) ([]string, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(msg, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			v, err := scalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	v, err := scalar(msg)
	if err != nil {
		return nil, err
	}
	return []string{v}, nil
}

func scalar(msg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", strings.TrimSpace(string(msg)))
}
