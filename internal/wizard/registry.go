package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/survey"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Registry holds the live sessions of a server, keyed by survey id.
// Sessions idle longer than the TTL are abandoned by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	def    *survey.Definition
	writer SubmissionWriter
	cfg    config
}

// NewRegistry creates a registry that starts sessions over def. The
// options apply to every session it starts.
func NewRegistry(def *survey.Definition, writer SubmissionWriter, opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		sessions: make(map[string]*Session),
		def:      def,
		writer:   writer,
		cfg:      cfg,
	}
}

// Definition returns the questionnaire sessions are started with.
func (r *Registry) Definition() *survey.Definition {
	return r.def
}

// Start creates and registers a new session.
func (r *Registry) Start() *Session {
	s := newSession(r.def, r.writer, r.cfg)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	r.cfg.logger.Debug("session started", "survey_id", s.ID())
	return s
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Remove drops a session without abandoning it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes every session idle longer than the TTL, abandoning those
// still in progress. It returns the number abandoned.
func (r *Registry) Sweep() int {
	now := r.cfg.clock.Now()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastActive()) > r.cfg.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	abandoned := 0
	for _, s := range expired {
		if s.State() != StateInProgress {
			continue
		}
		if err := s.Abandon(); err == nil {
			abandoned++
		}
	}

	metrics.ActiveSessions.Set(float64(n))
	if len(expired) > 0 {
		r.cfg.logger.Info("expired idle sessions", "removed", len(expired), "abandoned", abandoned)
	}
	return abandoned
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
