package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// FormatDuration formats a completion time for display: "45s", "2m 30s",
// "1h 5m". Zero or negative durations format as "0s".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// WriteJSON writes snap as indented JSON.
func WriteJSON(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// WriteText writes a plain-text report of snap.
func WriteText(w io.Writer, snap Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Generated\t%s\n", snap.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Submissions\t%d\n", snap.Total)
	fmt.Fprintf(tw, "Today\t%d\n", snap.Today)
	fmt.Fprintf(tw, "With contact\t%d\n", snap.WithContact)
	fmt.Fprintf(tw, "Avg completion\t%s\n", snap.AvgCompletionText)

	fmt.Fprintln(tw, "\nInterest")
	for _, c := range snap.Interest {
		fmt.Fprintf(tw, "  %s\t%d\n", c.Category, c.Count)
	}

	fmt.Fprintln(tw, "\nMarket obstacle")
	for _, c := range snap.MarketObstacle {
		fmt.Fprintf(tw, "  %s\t%d\n", c.Category, c.Count)
	}

	fmt.Fprintln(tw, "\nRatings")
	for _, r := range snap.RatingAverages {
		fmt.Fprintf(tw, "  %s\t%.1f\t(n=%d)\n", r.Field, r.Average, r.Count)
	}

	fmt.Fprintln(tw, "\nLast days")
	for _, d := range snap.DailyTrend {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", d.Date, d.Count, strings.Repeat("#", d.Count))
	}

	a := snap.Activity
	fmt.Fprintln(tw, "\nActivity")
	fmt.Fprintf(tw, "  started\t%d\n", a.Started)
	fmt.Fprintf(tw, "  completed\t%d\n", a.Completed)
	fmt.Fprintf(tw, "  abandoned\t%d\n", a.Abandoned)
	fmt.Fprintf(tw, "  linked\t%d\n", a.Linked)
	fmt.Fprintf(tw, "  completion rate\t%.0f%%\n", a.CompletionRate*100)

	return tw.Flush()
}
