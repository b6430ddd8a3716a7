package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/tally/internal/auth"
)

func (s *server) getDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Dashboard.Latest()
	if !ok {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusServiceUnavailable, "dashboard is still loading", nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// streamDashboard sends every new snapshot as a Server-Sent Event named
// "snapshot", with a comment line as keep-alive between updates.
func (s *server) streamDashboard(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	updates, cancel := s.Dashboard.Listen()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	operator := ""
	if claims := auth.OperatorFrom(r.Context()); claims != nil {
		operator = claims.Operator
	}
	s.Logger.Debug("dashboard stream opened", "operator", operator)
	defer s.Logger.Debug("dashboard stream closed", "operator", operator)

	heartbeat := time.NewTicker(s.Heartbeat)
	defer heartbeat.Stop()

	id := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-updates:
			if !open {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.Logger.Error("encode dashboard snapshot", "error", err)
				continue
			}
			id++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", id, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
