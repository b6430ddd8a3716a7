package store

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/tally/internal/survey"
)

// fieldNamePattern restricts answer field names that may be interpolated
// into a JSON path.
var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// metadataColumns maps wire names of filterable metadata to columns.
var metadataColumns = map[string]string{
	survey.KeyID:          "id",
	survey.KeySurveyID:    "survey_id",
	survey.KeyFullName:    "full_name",
	survey.KeyCompanyName: "company_name",
	survey.KeyEmail:       "email",
	survey.KeyPhone:       "phone",
}

// MetadataColumn returns the column backing a filterable metadata key.
func MetadataColumn(key string) (string, bool) {
	col, ok := metadataColumns[key]
	return col, ok
}

// ValidFieldName reports whether name is safe to use as an answer path in
// a query.
func ValidFieldName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

// GetSubmission retrieves a single submission by ID.
// Returns ErrNotFound if absent.
func (s *Store) GetSubmission(ctx context.Context, id string) (survey.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if isNoRows(err) {
		return survey.Submission{}, fmt.Errorf("get submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return survey.Submission{}, storageErr("get submission", err)
	}
	return sub, nil
}

// QueryEquals returns every submission whose named fields equal the given
// text values. Answer fields compare against the stored answer document;
// metadata keys (email, surveyId, ...) compare against their columns.
//
// Results are ordered by submitted_at DESC, id ASC.
// Returns empty slice (not nil) when nothing matches.
func (s *Store) QueryEquals(ctx context.Context, fields map[string]string) ([]survey.Submission, error) {
	where, args, err := equalsClause(fields)
	if err != nil {
		return nil, fmt.Errorf("query equals: %w", err)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY submitted_at DESC, id ASC`

	return s.querySubmissions(ctx, "query equals", query, args...)
}

// equalsClause builds a deterministic AND clause over sorted field names.
func equalsClause(fields map[string]string) (string, []any, error) {
	keys := slices.Sorted(maps.Keys(fields))
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, k := range keys {
		if col, ok := MetadataColumn(k); ok {
			conds = append(conds, col+" = ?")
		} else {
			if !ValidFieldName(k) {
				return "", nil, fmt.Errorf("invalid field name %q", k)
			}
			conds = append(conds, "json_extract(answers, '$."+k+"') = ?")
		}
		args = append(args, fields[k])
	}
	return strings.Join(conds, " AND "), args, nil
}

// LatestSubmissions returns up to limit submissions, newest first.
func (s *Store) LatestSubmissions(ctx context.Context, limit int) ([]survey.Submission, error) {
	return s.querySubmissions(ctx, "latest submissions", `
		SELECT `+submissionColumns+` FROM submissions
		ORDER BY submitted_at DESC, id ASC
		LIMIT ?
	`, limit)
}

func (s *Store) querySubmissions(ctx context.Context, op, query string, args ...any) ([]survey.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var subs []survey.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, storageErr(op+": scan", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr(op+": iterate", err)
	}

	// Return empty slice instead of nil
	if subs == nil {
		subs = []survey.Submission{}
	}
	return subs, nil
}

// LatestEvents returns up to limit events, newest first.
func (s *Store) LatestEvents(ctx context.Context, limit int) ([]survey.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storageErr("latest events", err)
	}
	defer rows.Close()

	var events []survey.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, storageErr("latest events: scan", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("latest events: iterate", err)
	}

	if events == nil {
		events = []survey.Event{}
	}
	return events, nil
}

// SubscribeSubmissions streams the latest limit submissions.
func (s *Store) SubscribeSubmissions(ctx context.Context, limit int) (*Subscription[[]survey.Submission], error) {
	signal, unlisten := s.notifier.Listen(TopicSubmissions)
	return Subscribe(ctx, func(ctx context.Context) ([]survey.Submission, error) {
		return s.LatestSubmissions(ctx, limit)
	}, signal, unlisten, s.poll, s.logger)
}

// SubscribeEvents streams the latest limit events.
func (s *Store) SubscribeEvents(ctx context.Context, limit int) (*Subscription[[]survey.Event], error) {
	signal, unlisten := s.notifier.Listen(TopicEvents)
	return Subscribe(ctx, func(ctx context.Context) ([]survey.Event, error) {
		return s.LatestEvents(ctx, limit)
	}, signal, unlisten, s.poll, s.logger)
}

// OperatorCredential returns the stored hash for username.
// Returns ErrNotFound if no credential exists.
func (s *Store) OperatorCredential(ctx context.Context, username string) (Credential, error) {
	var (
		c       Credential
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, updated_at
		FROM operator_credentials
		WHERE username = ?
	`, username).Scan(&c.Username, &c.PasswordHash, &updated)
	if isNoRows(err) {
		return Credential{}, fmt.Errorf("operator %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return Credential{}, storageErr("operator credential", err)
	}
	c.UpdatedAt = parseTime(updated)
	return c, nil
}
