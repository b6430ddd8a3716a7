package pgstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
)

const submissionColumns = `id, survey_id, answers::text, submitted_at, completion_time,
	full_name, company_name, email, phone, has_contact_info, linked_at`

const eventColumns = `id, type, survey_id, step, timestamp, payload::text`

func scanSubmission(row pgx.Row) (survey.Submission, error) {
	var (
		sub      survey.Submission
		answers  string
		linkedAt *time.Time
	)
	err := row.Scan(
		&sub.ID,
		&sub.SurveyID,
		&answers,
		&sub.SubmittedAt,
		&sub.CompletionTime,
		&sub.FullName,
		&sub.CompanyName,
		&sub.Email,
		&sub.Phone,
		&sub.HasContactInfo,
		&linkedAt,
	)
	if err != nil {
		return survey.Submission{}, err
	}

	sub.SubmittedAt = sub.SubmittedAt.UTC()
	if linkedAt != nil {
		t := linkedAt.UTC()
		sub.LinkedAt = &t
	}
	sub.Answers, err = survey.ParseAnswers([]byte(answers))
	if err != nil {
		sub.Answers = survey.Answers{}
	}
	return sub, nil
}

func scanEvent(row pgx.Row) (survey.Event, error) {
	var (
		ev      survey.Event
		kind    string
		payload string
	)
	if err := row.Scan(&ev.ID, &kind, &ev.SurveyID, &ev.Step, &ev.Timestamp, &payload); err != nil {
		return survey.Event{}, err
	}
	ev.Kind = survey.EventKind(kind)
	ev.Timestamp = ev.Timestamp.UTC()

	if payload != "" && payload != "{}" {
		dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
		dec.UseNumber()
		var p map[string]any
		if err := dec.Decode(&p); err == nil {
			ev.Payload = p
		}
	}
	return ev, nil
}

func canonical(v any) (string, error) {
	data, err := survey.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// InsertSubmission stores sub, idempotent on survey id.
func (s *Store) InsertSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error) {
	answers := "{}"
	if sub.Answers != nil {
		var err error
		if answers, err = canonical(sub.Answers); err != nil {
			return survey.Submission{}, fmt.Errorf("insert submission: marshal answers: %w", err)
		}
	}
	if sub.ID == "" {
		sub.ID = s.ids.Generate()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return survey.Submission{}, storageErr("insert submission: begin tx", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO submissions (id, survey_id, answers, submitted_at, completion_time)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (survey_id) DO NOTHING
	`, sub.ID, sub.SurveyID, answers, s.clock.Now().UTC(), sub.CompletionTime)
	if err != nil {
		return survey.Submission{}, storageErr("insert submission", err)
	}

	stored, err := scanSubmission(tx.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE survey_id = $1`, sub.SurveyID))
	if err != nil {
		return survey.Submission{}, storageErr("insert submission: select", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return survey.Submission{}, storageErr("insert submission: commit", err)
	}
	return stored, nil
}

// GetSubmission returns store.ErrNotFound if id is absent.
func (s *Store) GetSubmission(ctx context.Context, id string) (survey.Submission, error) {
	sub, err := scanSubmission(s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if isNoRows(err) {
		return survey.Submission{}, fmt.Errorf("get submission %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return survey.Submission{}, storageErr("get submission", err)
	}
	return sub, nil
}

// QueryEquals filters on answer text (answers->>'field') and metadata
// columns, newest first.
func (s *Store) QueryEquals(ctx context.Context, fields map[string]string) ([]survey.Submission, error) {
	keys := slices.Sorted(maps.Keys(fields))
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for i, k := range keys {
		placeholder := fmt.Sprintf("$%d", i+1)
		if col, ok := store.MetadataColumn(k); ok {
			conds = append(conds, col+" = "+placeholder)
		} else {
			if !store.ValidFieldName(k) {
				return nil, fmt.Errorf("query equals: invalid field name %q", k)
			}
			conds = append(conds, "answers->>'"+k+"' = "+placeholder)
		}
		args = append(args, fields[k])
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id ASC`

	return s.querySubmissions(ctx, "query equals", query, args...)
}

// LatestSubmissions returns up to limit submissions, newest first.
func (s *Store) LatestSubmissions(ctx context.Context, limit int) ([]survey.Submission, error) {
	return s.querySubmissions(ctx, "latest submissions", `
		SELECT `+submissionColumns+` FROM submissions
		ORDER BY submitted_at DESC, id ASC
		LIMIT $1
	`, limit)
}

func (s *Store) querySubmissions(ctx context.Context, op, query string, args ...any) ([]survey.Submission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	subs := []survey.Submission{}
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
	return subs, nil
}

// LinkIdentity is a conditional UPDATE ... RETURNING; see store.RecordStore.
func (s *Store) LinkIdentity(ctx context.Context, id string, identity survey.Identity) (survey.Submission, error) {
	guard, key := "email = $7", identity.Email
	if identity.Email == "" {
		guard, key = "(email = '' AND phone = $7)", identity.Phone
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return survey.Submission{}, storageErr("link identity: begin tx", err)
	}
	defer tx.Rollback(ctx)

	linked, err := scanSubmission(tx.QueryRow(ctx, `
		UPDATE submissions
		SET full_name = $1, company_name = $2, email = $3, phone = $4,
		    has_contact_info = TRUE, linked_at = $5
		WHERE id = $6 AND (has_contact_info = FALSE OR `+guard+`)
		RETURNING `+submissionColumns,
		identity.FullName,
		identity.CompanyName,
		identity.Email,
		identity.Phone,
		s.clock.Now().UTC(),
		id,
		key,
	))
	if isNoRows(err) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM submissions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return survey.Submission{}, storageErr("link identity: check", err)
		}
		if !exists {
			return survey.Submission{}, fmt.Errorf("link identity %s: %w", id, store.ErrNotFound)
		}
		return survey.Submission{}, fmt.Errorf("link identity %s: %w", id, store.ErrAlreadyLinked)
	}
	if err != nil {
		return survey.Submission{}, storageErr("link identity", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return survey.Submission{}, storageErr("link identity: commit", err)
	}
	return linked, nil
}

// AppendEvent appends ev; a zero Timestamp takes the store clock.
func (s *Store) AppendEvent(ctx context.Context, ev survey.Event) (survey.Event, error) {
	payload := "{}"
	if len(ev.Payload) > 0 {
		var err error
		if payload, err = canonical(ev.Payload); err != nil {
			return survey.Event{}, fmt.Errorf("append event: marshal payload: %w", err)
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO events (type, survey_id, step, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id
	`, string(ev.Kind), ev.SurveyID, ev.Step, ev.Timestamp, payload).Scan(&ev.ID)
	if err != nil {
		return survey.Event{}, storageErr("append event", err)
	}
	return ev, nil
}

// LatestEvents returns up to limit events, newest first.
func (s *Store) LatestEvents(ctx context.Context, limit int) ([]survey.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr("latest events", err)
	}
	defer rows.Close()

	events := []survey.Event{}
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
	return events, nil
}

// SubscribeSubmissions streams the latest limit submissions.
func (s *Store) SubscribeSubmissions(ctx context.Context, limit int) (*store.Subscription[[]survey.Submission], error) {
	signal, unlisten := s.notifier.Listen(store.TopicSubmissions)
	return store.Subscribe(ctx, func(ctx context.Context) ([]survey.Submission, error) {
		return s.LatestSubmissions(ctx, limit)
	}, signal, unlisten, s.poll, s.logger)
}

// SubscribeEvents streams the latest limit events.
func (s *Store) SubscribeEvents(ctx context.Context, limit int) (*store.Subscription[[]survey.Event], error) {
	signal, unlisten := s.notifier.Listen(store.TopicEvents)
	return store.Subscribe(ctx, func(ctx context.Context) ([]survey.Event, error) {
		return s.LatestEvents(ctx, limit)
	}, signal, unlisten, s.poll, s.logger)
}

// OperatorCredential returns store.ErrNotFound for unknown operators.
func (s *Store) OperatorCredential(ctx context.Context, username string) (store.Credential, error) {
	var c store.Credential
	err := s.pool.QueryRow(ctx, `
		SELECT username, password_hash, updated_at
		FROM operator_credentials WHERE username = $1
	`, username).Scan(&c.Username, &c.PasswordHash, &c.UpdatedAt)
	if isNoRows(err) {
		return store.Credential{}, fmt.Errorf("operator %s: %w", username, store.ErrNotFound)
	}
	if err != nil {
		return store.Credential{}, storageErr("operator credential", err)
	}
	return c, nil
}

// SetOperatorCredential creates or replaces an operator's hash.
func (s *Store) SetOperatorCredential(ctx context.Context, username, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO operator_credentials (username, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at
	`, username, passwordHash, s.clock.Now().UTC())
	if err != nil {
		return storageErr("set operator credential", err)
	}
	return nil
}
