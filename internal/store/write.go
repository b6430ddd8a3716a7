package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tally/internal/survey"
)

// InsertSubmission stores a finished submission.
//
// The store assigns ID (when empty) and SubmittedAt. Uses
// ON CONFLICT(survey_id) DO NOTHING so a retried submit of the same wizard
// run is idempotent; the existing record is returned in that case.
func (s *Store) InsertSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error) {
	answers, err := marshalAnswers(sub.Answers)
	if err != nil {
		return survey.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	if sub.ID == "" {
		sub.ID = s.ids.Generate()
	}
	sub.SubmittedAt = s.clock.Now().UTC()

	var completion sql.NullInt64
	if sub.CompletionTime != nil {
		completion = sql.NullInt64{Int64: *sub.CompletionTime, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return survey.Submission{}, storageErr("insert submission: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO submissions (id, survey_id, answers, submitted_at, completion_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(survey_id) DO NOTHING
	`,
		sub.ID,
		sub.SurveyID,
		answers,
		formatTime(sub.SubmittedAt),
		completion,
	)
	if err != nil {
		return survey.Submission{}, storageErr("insert submission", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return survey.Submission{}, storageErr("insert submission: rows affected", err)
	}

	stored, err := scanSubmission(tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE survey_id = ?`, sub.SurveyID))
	if err != nil {
		return survey.Submission{}, storageErr("insert submission: select", err)
	}

	if err := tx.Commit(); err != nil {
		return survey.Submission{}, storageErr("insert submission: commit", err)
	}

	if n > 0 {
		s.notifier.Notify(TopicSubmissions)
	}
	return stored, nil
}

// LinkIdentity writes contact fields onto a submission in one conditional
// UPDATE. A record already linked to the same contact is overwritten, so a
// re-run is safe; a record linked to anyone else is left untouched.
func (s *Store) LinkIdentity(ctx context.Context, id string, identity survey.Identity) (survey.Submission, error) {
	now := formatTime(s.clock.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return survey.Submission{}, storageErr("link identity: begin tx", err)
	}
	defer tx.Rollback()

	guard, key := sameContactGuard(identity)
	res, err := tx.ExecContext(ctx, `
		UPDATE submissions
		SET full_name = ?, company_name = ?, email = ?, phone = ?,
		    has_contact_info = 1, linked_at = ?
		WHERE id = ? AND (has_contact_info = 0 OR `+guard+`)
	`,
		identity.FullName,
		identity.CompanyName,
		identity.Email,
		identity.Phone,
		now,
		id,
		key,
	)
	if err != nil {
		return survey.Submission{}, storageErr("link identity", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return survey.Submission{}, storageErr("link identity: rows affected", err)
	}

	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return survey.Submission{}, storageErr("link identity: check", err)
		}
		if exists == 0 {
			return survey.Submission{}, fmt.Errorf("link identity %s: %w", id, ErrNotFound)
		}
		return survey.Submission{}, fmt.Errorf("link identity %s: %w", id, ErrAlreadyLinked)
	}

	linked, err := scanSubmission(tx.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if err != nil {
		return survey.Submission{}, storageErr("link identity: select", err)
	}

	if err := tx.Commit(); err != nil {
		return survey.Submission{}, storageErr("link identity: commit", err)
	}

	s.notifier.Notify(TopicSubmissions)
	return linked, nil
}

// sameContactGuard returns the SQL condition and argument identifying an
// existing link to the same contact: by email, or by phone when no email
// is given.
func sameContactGuard(identity survey.Identity) (string, string) {
	if identity.Email != "" {
		return "email = ?", identity.Email
	}
	return "(email = '' AND phone = ?)", identity.Phone
}

// AppendEvent appends an activity event. A zero Timestamp is replaced with
// the store clock.
func (s *Store) AppendEvent(ctx context.Context, ev survey.Event) (survey.Event, error) {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return survey.Event{}, fmt.Errorf("append event: %w", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (type, survey_id, step, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(ev.Kind),
		ev.SurveyID,
		ev.Step,
		formatTime(ev.Timestamp),
		payload,
	)
	if err != nil {
		return survey.Event{}, storageErr("append event", err)
	}

	ev.ID, err = res.LastInsertId()
	if err != nil {
		return survey.Event{}, storageErr("append event: last insert id", err)
	}

	s.notifier.Notify(TopicEvents)
	return ev, nil
}

// SetOperatorCredential creates or replaces an operator's password hash.
func (s *Store) SetOperatorCredential(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_credentials (username, password_hash, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at
	`, username, passwordHash, formatTime(s.clock.Now()))
	if err != nil {
		return storageErr("set operator credential", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
