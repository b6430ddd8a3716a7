// Package dashboard turns the live submission and event feeds into
// operator dashboard statistics.
package dashboard

import (
	"time"

	"github.com/roach88/tally/internal/survey"
)

// DefaultTrendDays is the length of the daily trend, today included.
const DefaultTrendDays = 7

// Config controls how a snapshot is computed.
type Config struct {
	// Location defines calendar days. Nil means UTC.
	Location *time.Location

	// TrendDays is the number of days in DailyTrend. Zero means
	// DefaultTrendDays.
	TrendDays int
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Config) trendDays() int {
	if c.TrendDays <= 0 {
		return DefaultTrendDays
	}
	return c.TrendDays
}

// CategoryCount is the number of submissions answering one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// RatingAverage is the mean of one rating field. Average is 0 when no
// submission answered it.
type RatingAverage struct {
	Field   string  `json:"field"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// DayCount is the number of submissions on the calendar day that begins
// at Start.
type DayCount struct {
	Date  string    `json:"date"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// ActivityStats summarises the event window.
type ActivityStats struct {
	ByKind         map[survey.EventKind]int `json:"byKind"`
	Started        int                      `json:"started"`
	Completed      int                      `json:"completed"`
	Abandoned      int                      `json:"abandoned"`
	Linked         int                      `json:"linked"`
	CompletionRate float64                  `json:"completionRate"`
}

// Snapshot is the full dashboard state derived from one pair of feed
// snapshots.
type Snapshot struct {
	GeneratedAt    time.Time       `json:"generatedAt"`
	Total          int             `json:"total"`
	Today          int             `json:"today"`
	WithContact    int             `json:"withContact"`
	Interest       []CategoryCount `json:"interest"`
	MarketObstacle []CategoryCount `json:"marketObstacle"`
	RatingAverages []RatingAverage `json:"ratingAverages"`

	// AvgCompletion is zero when no submission carries a completion time.
	AvgCompletion     time.Duration `json:"-"`
	AvgCompletionMS   int64         `json:"avgCompletionMs"`
	AvgCompletionText string        `json:"avgCompletion"`

	DailyTrend []DayCount    `json:"dailyTrend"`
	Activity   ActivityStats `json:"activity"`
}

// Compute derives a snapshot. Pure function, no side effects; it never
// fails, and malformed or missing values degrade to neutral defaults.
func Compute(subs []survey.Submission, events []survey.Event, now time.Time, cfg Config) Snapshot {
	loc := cfg.location()
	now = now.In(loc)
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	snap := Snapshot{
		GeneratedAt:    now,
		Total:          len(subs),
		Interest:       Distribution(subs, survey.FieldInterest, survey.InterestCategories),
		MarketObstacle: Distribution(subs, survey.FieldMarketObstacle, survey.MarketObstacleCategories),
		RatingAverages: RatingAverages(subs, survey.RatingFields),
		DailyTrend:     DailyTrend(subs, now, cfg.trendDays()),
		Activity:       Activity(events),
	}

	for _, sub := range subs {
		if sub.HasContactInfo {
			snap.WithContact++
		}
		if ts := sub.SubmittedAt; !ts.IsZero() && !ts.Before(startOfToday) && !ts.After(now) {
			snap.Today++
		}
	}

	snap.AvgCompletion = AverageCompletion(subs)
	snap.AvgCompletionMS = snap.AvgCompletion.Milliseconds()
	snap.AvgCompletionText = FormatDuration(snap.AvgCompletion)

	return snap
}

// Distribution counts submissions per declared category of field, in
// category order. Answers outside the categories are not counted.
func Distribution(subs []survey.Submission, field string, categories []string) []CategoryCount {
	out := make([]CategoryCount, len(categories))
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		out[i].Category = c
		index[c] = i
	}
	for _, sub := range subs {
		v, ok := sub.Answers.Text(field)
		if !ok {
			continue
		}
		if i, ok := index[v]; ok {
			out[i].Count++
		}
	}
	return out
}

// RatingAverages returns the mean of each rating field over the answers
// that are present and within range.
func RatingAverages(subs []survey.Submission, fields []string) []RatingAverage {
	out := make([]RatingAverage, len(fields))
	for i, field := range fields {
		out[i].Field = field
		sum := 0
		for _, sub := range subs {
			if v, ok := ratingValue(sub.Answers, field); ok {
				sum += v
				out[i].Count++
			}
		}
		if out[i].Count > 0 {
			out[i].Average = float64(sum) / float64(out[i].Count)
		}
	}
	return out
}

// ratingValue accepts stored ratings and ratings that arrived as text.
func ratingValue(a survey.Answers, field string) (int, bool) {
	switch v := a[field].(type) {
	case survey.Rating:
		if v >= survey.MinRating && v <= survey.MaxRating {
			return int(v), true
		}
	case survey.Text:
		if r, ok := survey.ParseRating(string(v)); ok {
			return int(r), true
		}
	}
	return 0, false
}

// AverageCompletion is the mean completion time of the submissions that
// carry one.
func AverageCompletion(subs []survey.Submission) time.Duration {
	var sum, n int64
	for _, sub := range subs {
		if sub.CompletionTime == nil || *sub.CompletionTime < 0 {
			continue
		}
		sum += *sub.CompletionTime
		n++
	}
	if n == 0 {
		return 0
	}
	return time.Duration(sum/n) * time.Millisecond
}

// DailyTrend counts submissions per calendar day in now's location for
// the days days ending today, oldest first. Submissions after now are not
// counted, matching Today.
func DailyTrend(subs []survey.Submission, now time.Time, days int) []DayCount {
	out := make([]DayCount, days)
	index := make(map[string]int, days)
	y, m, d := now.Date()
	for i := range out {
		start := time.Date(y, m, d-(days-1-i), 0, 0, 0, 0, now.Location())
		out[i] = DayCount{Date: start.Format(time.DateOnly), Start: start}
		index[out[i].Date] = i
	}

	for _, sub := range subs {
		ts := sub.SubmittedAt
		if ts.IsZero() || ts.After(now) {
			continue
		}
		if i, ok := index[ts.In(now.Location()).Format(time.DateOnly)]; ok {
			out[i].Count++
		}
	}
	return out
}

// Activity counts events by kind. CompletionRate is completed/started, or
// 0 when nothing started.
func Activity(events []survey.Event) ActivityStats {
	stats := ActivityStats{ByKind: make(map[survey.EventKind]int, len(survey.EventKinds))}
	for _, k := range survey.EventKinds {
		stats.ByKind[k] = 0
	}
	for _, ev := range events {
		stats.ByKind[ev.Kind]++
	}

	stats.Started = stats.ByKind[survey.EventSurveyStarted]
	stats.Completed = stats.ByKind[survey.EventSurveyCompleted]
	stats.Abandoned = stats.ByKind[survey.EventSurveyAbandoned]
	stats.Linked = stats.ByKind[survey.EventContactLinked]
	if stats.Started > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Started)
	}
	return stats
}
