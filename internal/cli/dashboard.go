package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/dashboard"
)

// DashboardOptions holds flags for the dashboard command.
type DashboardOptions struct {
	*RootOptions
	DB string
}

// NewDashboardCommand creates the dashboard command.
func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DashboardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard computed from the store",
		Long: `Compute one dashboard snapshot from the latest submissions and activity
events in the record store and print it, without starting the server.

Example:
  tally dashboard --db ./tally.db
  tally dashboard --config ./tally.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (overrides store settings)")

	return cmd
}

func runDashboard(opts *DashboardOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	subs, err := st.LatestSubmissions(ctx, cfg.Dashboard.SubmissionWindow)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read submissions", err)
	}
	events, err := st.LatestEvents(ctx, cfg.Dashboard.EventWindow)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	formatter.VerboseLog("Read %d submission(s), %d event(s)", len(subs), len(events))

	snap := dashboard.Compute(subs, events, time.Now(), dashboard.Config{
		Location:  loc,
		TrendDays: cfg.Dashboard.TrendDays,
	})

	if formatter.JSON() {
		return formatter.Success(snap)
	}
	return dashboard.WriteText(formatter.Writer, snap)
}
