package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/activity"
	"github.com/roach88/tally/internal/api"
	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/compiler"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/matcher"
	"github.com/roach88/tally/internal/wizard"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	DB   string

	// ready, when set, receives the bound listener address once the server
	// accepts connections. Tests use it to find an ephemeral port.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the questionnaire API and live dashboard",
		Long: `Start the HTTP server.

Loads the questionnaire (the built-in one unless survey.dir is set), opens
the record store, and serves the wizard, contact matching and operator
dashboard APIs until SIGINT or SIGTERM.

Example:
  tally serve --config ./tally.yaml
  TALLY_AUTH_JWT_SECRET=... tally serve --db ./tally.db --addr :9000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database (overrides store settings)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	if err := cfg.ValidateServe(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	def, err := compiler.LoadDefinition(cfg.Survey.Dir, cfg.Survey.Name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load survey", err)
	}
	fingerprint, err := compiler.Fingerprint(def)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load survey", err)
	}
	logger.Info("survey loaded", "survey", def.Name, "steps", len(def.Steps), "fingerprint", fingerprint[:12])

	// Set up signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tracker := activity.NewTracker(st, activity.WithLogger(logger))
	registry := wizard.NewRegistry(def, st,
		wizard.WithTracker(tracker),
		wizard.WithLogger(logger),
		wizard.WithSessionTTL(cfg.Survey.SessionTTL),
	)
	m := matcher.New(st,
		matcher.WithTracker(tracker),
		matcher.WithLogger(logger),
		matcher.WithMaxCandidates(cfg.Matcher.MaxCandidates),
	)
	agg := dashboard.NewAggregator(st,
		dashboard.Config{Location: loc, TrendDays: cfg.Dashboard.TrendDays},
		dashboard.WithLogger(logger),
		dashboard.WithWindows(cfg.Dashboard.SubmissionWindow, cfg.Dashboard.EventWindow),
	)
	authSvc := auth.NewService(st, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil), logger)

	srv := &http.Server{
		Handler: api.NewRouter(api.Deps{
			Sessions:  registry,
			Matcher:   m,
			Auth:      authSvc,
			Dashboard: agg,
			Store:     st,
			Logger:    logger,
			RateLimit: api.RateLimitConfig{
				RPS:   cfg.HTTP.RateLimitRPS,
				Burst: cfg.HTTP.RateLimitBurst,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		registry.Run(ctx, sweepInterval(cfg.Survey.SessionTTL))
	}()
	aggErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		aggErr <- agg.Run(ctx)
	}()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Serve(ln)
	}()

	logger.Info("server listening", "addr", ln.Addr().String(), "store", cfg.Store.Driver)
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "server failed", err)
		}
	case err := <-aggErr:
		// Run only returns early when a feed cannot be subscribed.
		if err != nil {
			runErr = WrapExitError(ExitFailure, "dashboard aggregator failed", err)
		}
	}
	cancel()

	grace := cfg.HTTP.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	wg.Wait()
	if err := tracker.Close(shutdownCtx); err != nil {
		logger.Error("activity tracker did not drain", "error", err, "pending", tracker.Pending())
	}

	logger.Info("server stopped")
	return runErr
}

// sweepInterval checks for idle sessions a few times per TTL, at most once
// a minute.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(min(ttl/4, time.Minute), time.Second)
}
