package wizard

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/clock"
	"github.com/roach88/tally/internal/idgen"
	"github.com/roach88/tally/internal/survey"
)

// SubmissionWriter persists a finished submission. store.RecordStore
// satisfies it.
type SubmissionWriter interface {
	InsertSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error)
}

// EventTracker receives activity events. Track must not block;
// activity.Tracker satisfies it.
type EventTracker interface {
	Track(ev survey.Event)
}

// StepListener is notified after the step cursor moves. It runs outside
// the session lock and may read the session.
type StepListener func(surveyID string, from, to int)

type config struct {
	clock    clock.Clock
	ids      idgen.Generator
	tracker  EventTracker
	listener StepListener
	logger   *slog.Logger
	ttl      time.Duration
}

func defaultConfig() config {
	return config{
		clock:  clock.Real{},
		ids:    idgen.UUIDv7{},
		logger: slog.Default(),
		ttl:    DefaultSessionTTL,
	}
}

// Option configures sessions and the registry.
type Option func(*config)

// WithClock sets the clock for start timestamps and completion durations.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithIDGenerator sets the survey id generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(cfg *config) { cfg.ids = g }
}

// WithTracker sets the activity event tracker.
func WithTracker(t EventTracker) Option {
	return func(cfg *config) { cfg.tracker = t }
}

// WithStepListener sets the step-change callback.
func WithStepListener(fn StepListener) Option {
	return func(cfg *config) { cfg.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithSessionTTL sets how long a registry keeps an idle session before
// abandoning it.
func WithSessionTTL(d time.Duration) Option {
	return func(cfg *config) { cfg.ttl = d }
}
