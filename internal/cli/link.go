package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/activity"
	"github.com/roach88/tally/internal/matcher"
)

// LinkOptions holds flags for the link command.
type LinkOptions struct {
	*RootOptions
	DB      string
	Pick    string
	Contact matcher.Contact
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link contact details to a stored submission",
		Long: `Match a contact against stored submissions by their interest and
market_obstacle answers and link it to the single candidate.

When several submissions match, the ranked candidates are listed and
nothing is linked; run again with --pick <submission-id> to choose one.

Exit codes:
  0 - Contact linked
  1 - No match, ambiguous match, invalid contact or link conflict
  2 - Command error

Example:
  tally link --db ./tally.db --name "Ama Mensah" --email ama@example.com \
    --interest yes --market-obstacle transport_cost`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.DB, "db", "", "path to SQLite database (overrides store settings)")
	f.StringVar(&opts.Pick, "pick", "", "submission id chosen from an ambiguous match")
	f.StringVar(&opts.Contact.FullName, "name", "", "full name (required)")
	f.StringVar(&opts.Contact.CompanyName, "company", "", "company name")
	f.StringVar(&opts.Contact.Email, "email", "", "email address")
	f.StringVar(&opts.Contact.Phone, "phone", "", "phone number")
	f.StringVar(&opts.Contact.Interest, "interest", "", "interest answer to match")
	f.StringVar(&opts.Contact.MarketObstacle, "market-obstacle", "", "market_obstacle answer to match")
	f.StringVar(&opts.Contact.BusinessType, "business-type", "", "business type, used to rank candidates")

	return cmd
}

func runLink(opts *LinkOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tracker := activity.NewTracker(st, activity.WithLogger(logger))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracker.Close(closeCtx); err != nil {
			logger.Error("activity tracker did not drain", "error", err)
		}
	}()

	m := matcher.New(st,
		matcher.WithTracker(tracker),
		matcher.WithLogger(logger),
		matcher.WithMaxCandidates(cfg.Matcher.MaxCandidates),
	)

	var out matcher.Outcome
	if opts.Pick != "" {
		out, err = m.Link(ctx, opts.Contact, opts.Pick)
	} else {
		out, err = m.Match(ctx, opts.Contact)
	}
	switch {
	case errors.Is(err, matcher.ErrNotCandidate):
		return linkFailure(formatter, ErrCodeNotCandidate,
			fmt.Sprintf("submission %s is not among the top candidates", opts.Pick), nil)
	case matcher.IsLinkConflict(err):
		return linkFailure(formatter, ErrCodeLinkConflict, err.Error(), nil)
	case err != nil:
		return WrapExitError(ExitCommandError, "matching failed", err)
	}

	switch out.Kind {
	case matcher.KindLinked:
		if formatter.JSON() {
			return formatter.Success(out)
		}
		fmt.Fprintf(formatter.Writer, "✓ Linked submission %s (score %d)\n", out.SubmissionID, out.Score)
		return nil
	case matcher.KindAmbiguous:
		if !formatter.JSON() {
			writeCandidates(formatter.Writer, out.Candidates)
		}
		return linkFailure(formatter, ErrCodeAmbiguous,
			fmt.Sprintf("%d candidates; rerun with --pick <submission-id>", len(out.Candidates)), out)
	case matcher.KindInvalid:
		return linkFailure(formatter, ErrCodeInvalid, out.Err(opts.Contact).Error(), out)
	default:
		return linkFailure(formatter, ErrCodeNoMatch, out.Err(opts.Contact).Error(), out)
	}
}

func linkFailure(formatter *OutputFormatter, code, message string, data any) error {
	if formatter.JSON() {
		if err := formatter.Failure(code, message, data); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s\n", message)
	}
	return NewExitError(ExitFailure, message)
}

func writeCandidates(w io.Writer, cands []matcher.Candidate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSUBMISSION\tSCORE\tSUBMITTED\tSUMMARY")
	for _, c := range cands {
		var parts []string
		for _, name := range matcher.SummaryFields {
			if v, ok := c.Summary[name]; ok {
				parts = append(parts, fmt.Sprintf("%s=%v", name, v))
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			c.Rank, c.SubmissionID, c.Score, c.SubmittedAt.UTC().Format(time.RFC3339), strings.Join(parts, " "))
	}
	tw.Flush()
}
