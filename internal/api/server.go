// Package api serves the questionnaire, contact matching and operator
// dashboard over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/matcher"
	"github.com/roach88/tally/internal/metrics"
	"github.com/roach88/tally/internal/wizard"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Sessions  *wizard.Registry
	Matcher   *matcher.Matcher
	Auth      *auth.Service
	Dashboard *dashboard.Aggregator
	Store     Pinger
	Logger    *slog.Logger

	// RateLimit applies to the public endpoints, per client IP.
	RateLimit RateLimitConfig

	// Heartbeat is the interval of keep-alive comments on the dashboard
	// stream. Zero means 15s.
	Heartbeat time.Duration
}

type server struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}
	s := &server{Deps: deps}
	limiter := newIPLimiter(deps.RateLimit)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(limiter.middleware)

			r.Post("/surveys", s.startSurvey)
			r.Route("/surveys/{surveyID}", func(r chi.Router) {
				r.Get("/", s.getSurvey)
				r.Put("/answers", s.setAnswers)
				r.Post("/advance", s.advance)
				r.Post("/retreat", s.retreat)
				r.Post("/submit", s.submit)
				r.Post("/abandon", s.abandon)
			})

			r.Post("/contact", s.matchContact)
			r.Post("/contact/link", s.linkContact)
			r.Post("/auth/login", s.login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(deps.Auth.Tokens()))

			r.Get("/dashboard", s.getDashboard)
			r.Get("/dashboard/stream", s.streamDashboard)
		})
	})

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Error("health check failed", "error", err)
		writeProblem(w, http.StatusServiceUnavailable, "store unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
