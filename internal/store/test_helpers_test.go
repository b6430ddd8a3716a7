package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/survey"
	"github.com/roach88/tally/internal/testutil"
)

var testEpoch = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

// createTestStore opens a fresh store in a temp dir with a fake clock and
// sequential ids. Polling is disabled so subscriptions refresh only on
// writes.
func createTestStore(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(testEpoch)
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithClock(clk),
		WithIDGenerator(testutil.NewSequenceGenerator("sub")),
		WithPollInterval(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

// insertTestSubmission stores a submission with the two discriminator
// answers and an optional business type.
func insertTestSubmission(t *testing.T, s *Store, surveyID, interest, obstacle, businessType string) survey.Submission {
	t.Helper()
	answers := survey.Answers{
		survey.FieldInterest:       survey.Text(interest),
		survey.FieldMarketObstacle: survey.Text(obstacle),
	}
	if businessType != "" {
		answers[survey.FieldBusinessType] = survey.Text(businessType)
	}
	sub, err := s.InsertSubmission(context.Background(), survey.Submission{
		SurveyID: surveyID,
		Answers:  answers,
	})
	require.NoError(t, err)
	return sub
}
