package store

import (
	"context"
	"time"

	"github.com/roach88/tally/internal/survey"
)

// Credential is a stored operator password hash.
type Credential struct {
	Username     string
	PasswordHash string
	UpdatedAt    time.Time
}

// RecordStore is the contract the wizard, matcher, aggregator and HTTP
// layer consume. Both the SQLite Store and pgstore.Store satisfy it.
type RecordStore interface {
	// InsertSubmission stores sub with a server-assigned id and
	// SubmittedAt. A second insert with the same SurveyID returns the
	// existing record unchanged.
	InsertSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error)

	// GetSubmission returns ErrNotFound when id does not exist.
	GetSubmission(ctx context.Context, id string) (survey.Submission, error)

	// QueryEquals returns submissions whose fields equal every given value,
	// newest first.
	QueryEquals(ctx context.Context, fields map[string]string) ([]survey.Submission, error)

	// LinkIdentity writes identity onto submission id and sets
	// HasContactInfo. It fails with ErrAlreadyLinked when the record is
	// linked to a different contact, and writes nothing in that case.
	LinkIdentity(ctx context.Context, id string, identity survey.Identity) (survey.Submission, error)

	AppendEvent(ctx context.Context, ev survey.Event) (survey.Event, error)

	LatestSubmissions(ctx context.Context, limit int) ([]survey.Submission, error)
	LatestEvents(ctx context.Context, limit int) ([]survey.Event, error)

	SubscribeSubmissions(ctx context.Context, limit int) (*Subscription[[]survey.Submission], error)
	SubscribeEvents(ctx context.Context, limit int) (*Subscription[[]survey.Event], error)

	OperatorCredential(ctx context.Context, username string) (Credential, error)
	SetOperatorCredential(ctx context.Context, username, passwordHash string) error

	Ping(ctx context.Context) error
	Close() error
}

var _ RecordStore = (*Store)(nil)
