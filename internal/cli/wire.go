package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tally/internal/config"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/store/pgstore"
)

// loadConfig reads the config named by --config. A non-empty db selects
// the sqlite driver at that path, overriding the file.
func loadConfig(opts *RootOptions, db string) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if db != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.SQLitePath = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// openStore opens the record store the config selects.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RecordStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		logger.Info("opening postgres store")
		st, err := pgstore.Open(ctx, cfg.Store.PostgresDSN,
			pgstore.WithPollInterval(cfg.Store.PollInterval),
			pgstore.WithLogger(logger),
		)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open postgres store", err)
		}
		return st, nil
	case config.DriverSQLite:
		logger.Info("opening sqlite store", "path", cfg.Store.SQLitePath)
		st, err := store.Open(cfg.Store.SQLitePath,
			store.WithPollInterval(cfg.Store.PollInterval),
			store.WithLogger(logger),
		)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open sqlite store", err)
		}
		return st, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown store driver %q", cfg.Store.Driver))
}
